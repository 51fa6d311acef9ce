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

package registry

import (
	"fmt"
	"sort"

	"map-assistant/internal/tool"
)

// Registry 工具注册表。装配期构建后只读，按封闭的 tool.Name 查找
type Registry struct {
	tools map[tool.Name]tool.Tool
}

// New 创建注册表。重复或非法的工具名视为装配错误
func New(tools ...tool.Tool) (*Registry, error) {
	m := make(map[tool.Name]tool.Tool, len(tools))
	for _, t := range tools {
		name := t.Name()
		if !name.Valid() {
			return nil, fmt.Errorf("工具名不在封闭集合内: %s", name)
		}
		if _, dup := m[name]; dup {
			return nil, fmt.Errorf("工具重复注册: %s", name)
		}
		m[name] = t
	}
	return &Registry{tools: m}, nil
}

// Get 按名称获取工具。未注册（含模型臆造的名字）返回 false，由编排层降级处理
func (r *Registry) Get(name tool.Name) (tool.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List 返回所有已注册工具，按名称排序保证目录稳定
func (r *Registry) List() []tool.Tool {
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// FunctionSchema OpenAI function-calling 形式的单个工具描述
type FunctionSchema struct {
	Type     string `json:"type"`
	Function struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Parameters  tool.Schema `json:"parameters"`
	} `json:"function"`
}

// Catalog 返回按 OpenAI tools 形式组织的目录（"free" 模式下整体下发）
func (r *Registry) Catalog() []FunctionSchema {
	list := r.List()
	out := make([]FunctionSchema, 0, len(list))
	for _, t := range list {
		var fs FunctionSchema
		fs.Type = "function"
		fs.Function.Name = string(t.Name())
		fs.Function.Description = t.Description()
		fs.Function.Parameters = t.Schema()
		out = append(out, fs)
	}
	return out
}
