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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map-assistant/internal/model/llm"
	"map-assistant/internal/tool"
	"map-assistant/internal/tool/registry"
	"map-assistant/pkg/log"
)

// fakeClient 按队列回放补全结果，并捕获每次收到的会话与选项
type fakeClient struct {
	completions []llm.Completion
	errs        []error
	calls       [][]llm.Message
	options     []llm.CompleteOptions
	noCred      bool
}

func (f *fakeClient) Complete(ctx context.Context, messages []llm.Message, options llm.CompleteOptions) (llm.Completion, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	f.options = append(f.options, options)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return llm.Completion{}, f.errs[idx]
	}
	if idx < len(f.completions) {
		return f.completions[idx], nil
	}
	return llm.Completion{Text: "unexpected extra call"}, nil
}

func (f *fakeClient) Model() string       { return "fake-model" }
func (f *fakeClient) Provider() string    { return "fake" }
func (f *fakeClient) HasCredential() bool { return !f.noCred }

// countingTool 记录调用次数并返回预置结果，可注入延迟模拟乱序完成
type countingTool struct {
	name   tool.Name
	result tool.Result
	delay  time.Duration
	count  atomic.Int64
}

func (c *countingTool) Name() tool.Name        { return c.name }
func (c *countingTool) Description() string    { return "test tool" }
func (c *countingTool) Schema() tool.Schema    { return tool.Schema{Type: "object"} }
func (c *countingTool) Execute(ctx context.Context, input map[string]any) (tool.Result, error) {
	c.count.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.result, nil
}

func testLogger(t *testing.T) *log.Logger {
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	return logger
}

func newTestOrchestrator(t *testing.T, client llm.Client, tools ...tool.Tool) *Orchestrator {
	reg, err := registry.New(tools...)
	require.NoError(t, err)
	return NewOrchestrator(client, reg, testLogger(t), Config{})
}

func toolRequest(id string, name tool.Name, args string) llm.ToolRequest {
	return llm.ToolRequest{ID: id, Name: string(name), Arguments: json.RawMessage(args)}
}

func TestChat_DirectAnswerSkipsTools(t *testing.T) {
	poi := &countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}}
	client := &fakeClient{completions: []llm.Completion{{Text: "直接回答"}}}
	orchestrator := newTestOrchestrator(t, client, poi)

	result := orchestrator.Chat(context.Background(), "你好", nil)

	assert.Equal(t, "直接回答", result.Content)
	assert.Equal(t, []string{}, result.ToolCalls)
	assert.EqualValues(t, 0, poi.count.Load(), "直通路径不应触碰工具后端")
	require.Len(t, client.calls, 1)
	assert.NotEmpty(t, client.options[0].Tools, "第一轮应下发工具目录")
}

func TestChat_SpecScenario_POISearch(t *testing.T) {
	poi := &countingTool{
		name:   tool.NameSearchPOI,
		result: tool.Result{Content: `{"status":"1","pois":[{"name":"Coffee Corner"}]}`},
	}
	client := &fakeClient{completions: []llm.Completion{
		{ToolRequests: []llm.ToolRequest{
			toolRequest("call_1", tool.NameSearchPOI, `{"keywords":"cafes","city":"Central Park"}`),
		}},
		{Text: "<summary>"},
	}}
	orchestrator := newTestOrchestrator(t, client, poi)

	result := orchestrator.Chat(context.Background(), "Find cafes near Central Park", nil)

	assert.Equal(t, "<summary>", result.Content)
	assert.Equal(t, []string{`Using Tool: Amap POI ("cafes")`}, result.ToolCalls)
	assert.EqualValues(t, 1, poi.count.Load())

	// 第二轮不应再下发工具目录
	require.Len(t, client.calls, 2)
	assert.Empty(t, client.options[1].Tools)
	assert.Equal(t, llm.ToolChoiceNone, client.options[1].ToolChoice)

	// 第二轮会话 = 原序列 + assistant 工具请求轮 + 工具结果轮
	second := client.calls[1]
	require.Len(t, second, 4) // system, user, assistant, tool
	assert.Equal(t, "assistant", second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, "tool", second[3].Role)
	assert.Equal(t, "call_1", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, "Coffee Corner")
}

func TestChat_TraceOrderIndependentOfCompletionOrder(t *testing.T) {
	slow := &countingTool{
		name:   tool.NameGeocode,
		result: tool.Result{Content: `{"geocodes":[]}`},
		delay:  80 * time.Millisecond,
	}
	fast := &countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{"pois":[]}`}}
	client := &fakeClient{completions: []llm.Completion{
		{ToolRequests: []llm.ToolRequest{
			toolRequest("call_a", tool.NameGeocode, `{"address":"天安门"}`),
			toolRequest("call_b", tool.NameSearchPOI, `{"keywords":"酒店"}`),
		}},
		{Text: "done"},
	}}
	orchestrator := newTestOrchestrator(t, client, slow, fast)

	result := orchestrator.Chat(context.Background(), "北京行程", nil)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, `Using Tool: Amap Geocode ("天安门")`, result.ToolCalls[0])
	assert.Equal(t, `Using Tool: Amap POI ("酒店")`, result.ToolCalls[1])

	// 工具结果轮同样保持请求顺序
	second := client.calls[1]
	require.Len(t, second, 5)
	assert.Equal(t, "call_a", second[3].ToolCallID)
	assert.Equal(t, "call_b", second[4].ToolCallID)
}

func TestChat_UnknownToolStillReachesFinalPass(t *testing.T) {
	client := &fakeClient{completions: []llm.Completion{
		{ToolRequests: []llm.ToolRequest{
			toolRequest("call_1", tool.Name("amap.teleport"), `{}`),
		}},
		{Text: "explained"},
	}}
	orchestrator := newTestOrchestrator(t, client,
		&countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}})

	result := orchestrator.Chat(context.Background(), "hi", nil)

	assert.Equal(t, "explained", result.Content)
	require.Len(t, result.ToolCalls, 1)
	require.Len(t, client.calls, 2, "未知工具不应跳过第二轮")
	second := client.calls[1]
	assert.Contains(t, second[len(second)-1].Content, "unknown_tool")
}

func TestChat_DuplicateCallIDsFirstWins(t *testing.T) {
	poi := &countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}}
	client := &fakeClient{completions: []llm.Completion{
		{ToolRequests: []llm.ToolRequest{
			toolRequest("call_1", tool.NameSearchPOI, `{"keywords":"咖啡"}`),
			toolRequest("call_1", tool.NameSearchPOI, `{"keywords":"茶馆"}`),
		}},
		{Text: "done"},
	}}
	orchestrator := newTestOrchestrator(t, client, poi)

	result := orchestrator.Chat(context.Background(), "hi", nil)

	assert.EqualValues(t, 1, poi.count.Load())
	assert.Equal(t, []string{`Using Tool: Amap POI ("咖啡")`}, result.ToolCalls)
}

func TestChat_FirstPassFailureYieldsFallback(t *testing.T) {
	poi := &countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}}
	client := &fakeClient{errs: []error{errors.New("connection reset")}}
	orchestrator := newTestOrchestrator(t, client, poi)

	result := orchestrator.Chat(context.Background(), "hi", nil)

	assert.Equal(t, fallbackMessage, result.Content)
	assert.Equal(t, []string{}, result.ToolCalls)
	assert.EqualValues(t, 0, poi.count.Load())
}

func TestChat_FinalPassFailureYieldsFallback(t *testing.T) {
	client := &fakeClient{
		completions: []llm.Completion{
			{ToolRequests: []llm.ToolRequest{
				toolRequest("call_1", tool.NameSearchPOI, `{"keywords":"x"}`),
			}},
		},
		errs: []error{nil, errors.New("rate limited")},
	}
	orchestrator := newTestOrchestrator(t, client,
		&countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}})

	result := orchestrator.Chat(context.Background(), "hi", nil)

	assert.Equal(t, fallbackMessage, result.Content)
	assert.Equal(t, []string{}, result.ToolCalls)
}

func TestChat_MissingCredentialShortCircuits(t *testing.T) {
	poi := &countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}}
	client := &fakeClient{noCred: true}
	orchestrator := newTestOrchestrator(t, client, poi)

	result := orchestrator.Chat(context.Background(), "hi", nil)

	assert.Equal(t, credentialMessage, result.Content)
	assert.Equal(t, []string{}, result.ToolCalls)
	assert.Empty(t, client.calls, "凭据缺失不应调用补全服务")
	assert.EqualValues(t, 0, poi.count.Load())
}

func TestChat_MalformedHistoryTurnsDropped(t *testing.T) {
	client := &fakeClient{completions: []llm.Completion{{Text: "ok"}}}
	orchestrator := newTestOrchestrator(t, client,
		&countingTool{name: tool.NameSearchPOI, result: tool.Result{Content: `{}`}})

	history := []HistoryTurn{
		{Role: "user", Content: "之前的问题"},
		{Role: "", Content: "没有角色"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "之前的回答"},
	}
	orchestrator.Chat(context.Background(), "新问题", history)

	require.Len(t, client.calls, 1)
	first := client.calls[0]
	require.Len(t, first, 4) // system + 2 条合法历史 + user
	assert.Equal(t, "system", first[0].Role)
	assert.Equal(t, "之前的问题", first[1].Content)
	assert.Equal(t, "之前的回答", first[2].Content)
	assert.Equal(t, "新问题", first[3].Content)
}

func TestBuildConversation_CustomSystemPrompt(t *testing.T) {
	messages := buildConversation("你是测试助手", "hi", nil)
	require.Len(t, messages, 2)
	assert.Equal(t, "你是测试助手", messages[0].Content)
}

func TestInvocationLabel_RouteShape(t *testing.T) {
	label := invocationLabel(tool.NamePlanRoute, map[string]any{
		"origin":      "北京站",
		"destination": "首都机场",
	})
	assert.Equal(t, `Using Tool: Amap Route ("北京站" -> "首都机场")`, label)
}
