// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"context"
	"encoding/json"
)

// Name 工具名。封闭集合，注册表以此为键，避免散落的字符串分支
type Name string

const (
	NameGeocode   Name = "amap.geocode"
	NameSearchPOI Name = "amap.search_poi"
	NamePlanRoute Name = "amap.plan_route"
)

// All 返回全部已定义工具名（注册表装配与穷尽性测试用）
func All() []Name {
	return []Name{NameGeocode, NameSearchPOI, NamePlanRoute}
}

// Valid 判断 name 是否属于封闭集合
func (n Name) Valid() bool {
	switch n {
	case NameGeocode, NameSearchPOI, NamePlanRoute:
		return true
	}
	return false
}

// Schema 工具入参的 JSON Schema 描述（供补全服务的工具目录使用）
type Schema struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// Result 工具执行结果。工具级失败（缺参、凭据缺失、后端错误）写入 Err，
// Go error 只用于编程错误，编排循环不会因 Err 中断
type Result struct {
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Tool 工具接口
type Tool interface {
	Name() Name
	Description() string
	Schema() Schema
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// ErrorPayload 构造结构化错误负载，作为 Result.Content 回传给模型自纠
func ErrorPayload(code, message string) Result {
	raw, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	return Result{Content: string(raw), Err: message}
}
