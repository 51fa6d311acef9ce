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
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"map-assistant/internal/model/llm"
	"map-assistant/internal/tool"
	"map-assistant/internal/tool/registry"
	"map-assistant/pkg/log"
	"map-assistant/pkg/metrics"
)

// 固定的用户可见降级文案。原始错误只进日志，不出核心边界
const (
	fallbackMessage   = "Sorry, I encountered an error processing your request."
	credentialMessage = "The assistant is not configured yet: the completion service API key is missing. " +
		"Please set model.llm.providers.*.api_key (or the OPENAI_API_KEY environment variable) and restart."
)

// Config 编排配置
type Config struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Orchestrator 对话编排器：两轮补全之间完成工具分发与结果回折。
// 无跨请求状态，单实例可被并发请求共用
type Orchestrator struct {
	client   llm.Client
	registry *registry.Registry
	logger   *log.Logger
	config   Config
}

// NewOrchestrator 创建编排器
func NewOrchestrator(client llm.Client, reg *registry.Registry, logger *log.Logger, config Config) *Orchestrator {
	return &Orchestrator{
		client:   client,
		registry: reg,
		logger:   logger,
		config:   config,
	}
}

// Chat 核心入口：一条用户消息 + 完整历史 -> 最终文本与工具轨迹。
// 总是返回结构完整的结果，失败也折叠为固定文案
func (o *Orchestrator) Chat(ctx context.Context, message string, history []HistoryTurn) ChatResult {
	start := time.Now()
	defer func() {
		metrics.ChatDuration.Observe(time.Since(start).Seconds())
	}()

	// 凭据缺失在任何工具分发之前短路
	if !o.client.HasCredential() {
		o.logger.Warn("补全服务凭据未配置，请求被降级")
		metrics.ChatTotal.WithLabelValues("failed").Inc()
		return ChatResult{Content: credentialMessage, ToolCalls: []string{}}
	}

	messages := buildConversation(o.config.SystemPrompt, message, history)

	// 第一轮："free" 模式，下发完整工具目录
	first, err := o.complete(ctx, "first", messages, llm.ToolChoiceAuto)
	if err != nil {
		o.logger.Error("第一轮补全失败", "error", err)
		metrics.ChatTotal.WithLabelValues("failed").Inc()
		return ChatResult{Content: fallbackMessage, ToolCalls: []string{}}
	}
	if !first.IsToolRequests() {
		metrics.ChatTotal.WithLabelValues("direct").Inc()
		return ChatResult{Content: first.Text, ToolCalls: []string{}}
	}

	// 工具分发：每个请求恰好产出一个结果，轨迹保持请求顺序
	requests := o.dedupeRequests(first.ToolRequests)
	outcomes, labels := o.dispatch(ctx, requests)

	messages = append(messages, assistantToolTurn(requests))
	for i, req := range requests {
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: req.ID,
			Name:       req.Name,
			Content:    outcomes[i],
		})
	}

	// 第二轮："final" 模式，不下发工具，只允许纯文本
	final, err := o.complete(ctx, "final", messages, llm.ToolChoiceNone)
	if err != nil {
		o.logger.Error("第二轮补全失败", "error", err)
		metrics.ChatTotal.WithLabelValues("failed").Inc()
		return ChatResult{Content: fallbackMessage, ToolCalls: []string{}}
	}

	metrics.ChatTotal.WithLabelValues("tools").Inc()
	return ChatResult{Content: final.Text, ToolCalls: labels}
}

// complete 一次补全调用。mode=none 时不下发目录
func (o *Orchestrator) complete(ctx context.Context, pass string, messages []llm.Message, toolChoice string) (llm.Completion, error) {
	options := llm.CompleteOptions{
		Temperature: o.config.Temperature,
		MaxTokens:   o.config.MaxTokens,
		ToolChoice:  toolChoice,
	}
	if toolChoice == llm.ToolChoiceAuto {
		options.Tools = o.toolCatalog()
	}

	start := time.Now()
	completion, err := o.client.Complete(ctx, messages, options)
	metrics.CompletionDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
	return completion, err
}

// toolCatalog 注册表目录转为线上格式
func (o *Orchestrator) toolCatalog() []llm.ToolSchema {
	catalog := o.registry.Catalog()
	out := make([]llm.ToolSchema, 0, len(catalog))
	for _, fs := range catalog {
		out = append(out, llm.ToolSchema{
			Type: fs.Type,
			Function: llm.ToolFunction{
				Name:        fs.Function.Name,
				Description: fs.Function.Description,
				Parameters:  fs.Function.Parameters,
			},
		})
	}
	return out
}

// dedupeRequests 去除重复 call id（首个保留），并为缺 id 的请求补号
func (o *Orchestrator) dedupeRequests(requests []llm.ToolRequest) []llm.ToolRequest {
	seen := make(map[string]bool, len(requests))
	out := make([]llm.ToolRequest, 0, len(requests))
	for _, req := range requests {
		if req.ID == "" {
			req.ID = "call_" + uuid.NewString()
		}
		if seen[req.ID] {
			o.logger.Warn("丢弃重复的工具请求", "call_id", req.ID, "tool", req.Name)
			continue
		}
		seen[req.ID] = true
		out = append(out, req)
	}
	return out
}

// dispatch 并发执行全部工具请求。outcomes 与 labels 均按请求顺序排列，
// 与各工具实际完成顺序无关
func (o *Orchestrator) dispatch(ctx context.Context, requests []llm.ToolRequest) (outcomes []string, labels []string) {
	outcomes = make([]string, len(requests))
	labels = make([]string, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		args := parseArguments(req.Arguments)
		labels[i] = invocationLabel(tool.Name(req.Name), args)

		wg.Add(1)
		go func(i int, req llm.ToolRequest, args map[string]any) {
			defer wg.Done()
			outcomes[i] = o.executeOne(ctx, req, args)
		}(i, req, args)
	}
	wg.Wait()
	return outcomes, labels
}

// executeOne 单个工具请求 -> 负载。未知工具与执行失败都折叠为错误负载，
// 保持一请求一结果的不变式
func (o *Orchestrator) executeOne(ctx context.Context, req llm.ToolRequest, args map[string]any) string {
	name := tool.Name(req.Name)
	t, ok := o.registry.Get(name)
	if !ok {
		o.logger.Warn("模型请求了未注册的工具", "tool", req.Name, "call_id", req.ID)
		metrics.ToolFailTotal.WithLabelValues(req.Name).Inc()
		return tool.ErrorPayload("unknown_tool", "工具不存在: "+req.Name).Content
	}

	start := time.Now()
	result, err := t.Execute(ctx, args)
	metrics.ToolDuration.WithLabelValues(req.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		// Execute 的 error 分支只用于编程错误，仍折叠为负载以维持循环
		o.logger.Error("工具执行异常", "tool", req.Name, "error", err)
		metrics.ToolFailTotal.WithLabelValues(req.Name).Inc()
		return tool.ErrorPayload("tool_error", err.Error()).Content
	}
	if result.Err != "" {
		metrics.ToolFailTotal.WithLabelValues(req.Name).Inc()
	}
	return result.Content
}

// assistantToolTurn 把工具请求回放为 assistant 轮，供第二轮补全对齐上下文
func assistantToolTurn(requests []llm.ToolRequest) llm.Message {
	calls := make([]llm.ToolCall, 0, len(requests))
	for _, req := range requests {
		calls = append(calls, llm.ToolCall{
			ID:   req.ID,
			Type: "function",
			Function: llm.FunctionCall{
				Name:      req.Name,
				Arguments: string(req.Arguments),
			},
		})
	}
	return llm.Message{Role: "assistant", ToolCalls: calls}
}

// parseArguments 解析 JSON 实参，空串与坏 JSON 都回退为空表，由工具各自校验必填项
func parseArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
