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

package http

import (
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"map-assistant/internal/assistant"
	"map-assistant/pkg/log"
	"map-assistant/pkg/metrics"
)

// ChatService 对话编排入口，由 internal/assistant 实现
type ChatService interface {
	Chat(ctx context.Context, message string, history []assistant.HistoryTurn) assistant.ChatResult
}

// Handler HTTP 处理器
type Handler struct {
	chat   ChatService
	logger *log.Logger
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(chat ChatService, logger *log.Logger) *Handler {
	return &Handler{
		chat:   chat,
		logger: logger,
	}
}

// ChatRequest 对话请求体。history 由调用方每次完整重发
type ChatRequest struct {
	Message string                  `json:"message"`
	History []assistant.HistoryTurn `json:"history"`
}

// Chat 对话入口
// POST /api/chat
func (h *Handler) Chat(c context.Context, ctx *app.RequestContext) {
	var req ChatRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
		return
	}
	if req.Message == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}

	// 编排器保证返回结构完整的结果，内部错误不会穿透到这里
	result := h.chat.Chat(c, req.Message, req.History)
	ctx.JSON(consts.StatusOK, result)
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "map-assistant",
	})
}

// Metrics Prometheus 文本格式暴露
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "采集指标失败: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "failed to collect metrics",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
