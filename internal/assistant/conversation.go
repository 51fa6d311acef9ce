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

package assistant

import (
	"fmt"

	"map-assistant/internal/model/llm"
	"map-assistant/internal/tool"
)

// HistoryTurn 调用方随每次请求完整重发的历史轮。跨请求状态不在服务端保存
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult 终端输出：最终文本与本次用到的工具轨迹
type ChatResult struct {
	Content   string   `json:"content"`
	ToolCalls []string `json:"tool_calls"`
}

// defaultSystemPrompt 内置系统提示词
const defaultSystemPrompt = "You are a helpful map assistant. You can look up coordinates for addresses, " +
	"search points of interest, and plan routes using the available tools. " +
	"Answer in the user's language, and ground your answers in tool results when you use them."

// buildConversation 组装会话序列：系统提示 + 过滤后的历史 + 新用户消息。
// 缺 role 或缺 content 的历史轮直接丢弃
func buildConversation(systemPrompt, message string, history []HistoryTurn) []llm.Message {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		if turn.Role == "" || turn.Content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}

// invocationLabel 单行人类可读的工具调用描述，按请求顺序进入 ChatResult.ToolCalls。
// 对封闭集合穷尽分支，未知名字走兜底
func invocationLabel(name tool.Name, args map[string]any) string {
	switch name {
	case tool.NameGeocode:
		return fmt.Sprintf("Using Tool: Amap Geocode (%q)", strArg(args, "address"))
	case tool.NameSearchPOI:
		return fmt.Sprintf("Using Tool: Amap POI (%q)", strArg(args, "keywords"))
	case tool.NamePlanRoute:
		return fmt.Sprintf("Using Tool: Amap Route (%q -> %q)", strArg(args, "origin"), strArg(args, "destination"))
	}
	return fmt.Sprintf("Using Tool: %s", name)
}

// strArg 从实参表取字符串值，缺失或非字符串返回空串
func strArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
