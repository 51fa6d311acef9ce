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

package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client LLM 客户端接口
type Client interface {
	// Complete 发起一次补全。options.ToolChoice 控制是否允许模型请求工具
	Complete(ctx context.Context, messages []Message, options CompleteOptions) (Completion, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// HasCredential 是否配置了访问凭据
	HasCredential() bool
}

// Message 会话消息。顺序即会话时间线，重发给补全服务时必须原样保序
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // assistant 请求工具的那一轮携带
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool 时对应的请求 id
	Name       string     `json:"name,omitempty"`         // role=tool 时的工具名
}

// ToolCall OpenAI 线上格式的工具调用（随 assistant 消息回放给服务端）
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall 工具名与 JSON 编码的实参
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema 下发给补全服务的单个工具描述
type ToolSchema struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction 工具的 name/description/参数 Schema
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// ToolChoice 取值
const (
	ToolChoiceAuto = "auto" // "free" 模式：模型可自行请求工具
	ToolChoiceNone = "none" // "final" 模式：只允许纯文本
)

// CompleteOptions 补全选项
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
	Tools       []ToolSchema // 空则不下发工具目录
	ToolChoice  string       // 空等价于 auto（仅当 Tools 非空时下发）
}

// ToolRequest 第一轮响应中的单个工具请求
type ToolRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Completion 标签化的补全结果：纯文本或一组工具请求，二者互斥
type Completion struct {
	Text         string
	ToolRequests []ToolRequest
}

// IsToolRequests 是否为工具请求结果
func (c Completion) IsToolRequests() bool {
	return len(c.ToolRequests) > 0
}

// NewClient 创建新的 LLM 客户端；baseURL 用于 OpenAI 兼容端点（如 Qwen/DashScope），空则用默认或环境变量
func NewClient(provider, model, apiKey string, baseURL string) (Client, error) {
	switch provider {
	case "", "openai", "qwen":
		return NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("不支持的 LLM 提供商: %s", provider)
	}
}
