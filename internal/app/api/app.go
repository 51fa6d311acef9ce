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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"map-assistant/internal/api/http"
	"map-assistant/internal/api/http/middleware"
	"map-assistant/internal/assistant"
	"map-assistant/internal/model/llm"
	"map-assistant/internal/tool/amap"
	"map-assistant/internal/tool/registry"
	"map-assistant/pkg/config"
	"map-assistant/pkg/log"
	"map-assistant/pkg/secrets"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配补全客户端、工具注册表、编排器与 HTTP 路由）
type App struct {
	config       *config.Config
	logger       *log.Logger
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Options:  cfg.Secrets.Options,
	})
	if err != nil {
		logger.Warn("Secret Store 初始化失败，回退到环境变量", "error", err)
		secretStore = secrets.NewEnvStore()
	}

	// 补全客户端：provider 取 model.defaults.llm，凭据缺失时降级逻辑在编排器
	providerName := cfg.Model.Defaults.LLM
	if providerName == "" {
		providerName = "openai"
	}
	providerCfg := cfg.Model.LLM.Providers[providerName]
	apiKey := resolveCredential(providerCfg.APIKey, secretStore, strings.ToUpper(providerName)+"_API_KEY")
	modelName, modelInfo := defaultModel(providerCfg)
	baseClient, err := llm.NewClient(providerName, modelName, apiKey, providerCfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}
	limits := make(map[string]llm.LLMLimitConfig, len(cfg.RateLimits.LLM))
	for p, rl := range cfg.RateLimits.LLM {
		limits[p] = llm.LLMLimitConfig{
			RequestsPerMinute: rl.RequestsPerMinute,
			MaxConcurrent:     rl.MaxConcurrent,
		}
	}
	client := llm.NewRateLimitedClient(baseClient, llm.NewLLMRateLimiter(limits, nil))

	// 工具执行器：三个工具共用一个高德客户端，路径规划复用地理编码
	amapClient := amap.NewClient(amap.Config{
		APIKey:  resolveCredential(cfg.Amap.APIKey, secretStore, "AMAP_API_KEY"),
		BaseURL: cfg.Amap.BaseURL,
		Timeout: parseDuration(cfg.Amap.Timeout, 10*time.Second),
	})
	geocode := amap.NewGeocodeTool(amapClient)
	reg, err := registry.New(
		geocode,
		amap.NewSearchPOITool(amapClient),
		amap.NewRouteTool(amapClient, geocode),
	)
	if err != nil {
		return nil, fmt.Errorf("初始化工具注册表失败: %w", err)
	}

	orchestratorCfg := assistant.Config{
		SystemPrompt: cfg.Assistant.SystemPrompt,
		Temperature:  cfg.Assistant.Temperature,
		MaxTokens:    cfg.Assistant.MaxTokens,
	}
	if orchestratorCfg.Temperature == 0 && modelInfo.Temperature > 0 {
		orchestratorCfg.Temperature = modelInfo.Temperature
	}
	if orchestratorCfg.MaxTokens == 0 && modelInfo.MaxTokens > 0 {
		orchestratorCfg.MaxTokens = modelInfo.MaxTokens
	}
	orchestrator := assistant.NewOrchestrator(client, reg, logger, orchestratorCfg)

	handler := http.NewHandler(orchestrator, logger)
	var origins []string
	if cfg.API.CORS.Enable {
		origins = cfg.API.CORS.AllowOrigins
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(origins...))

	return &App{
		config: cfg,
		logger: logger,
		router: router,
	}, nil
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与应用日志配置对齐
	output, err := log.Output(&log.Config{File: a.config.Log.File})
	if err != nil {
		return err
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.Level(a.config.Log.Level))
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	if a.config.Monitoring.Tracing.Enable {
		serviceName := a.config.Monitoring.Tracing.ServiceName
		if serviceName == "" {
			serviceName = "map-assistant"
		}
		exportEndpoint := a.config.Monitoring.Tracing.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if a.config.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, cfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(cfg))
			a.logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		return a.hertz.Shutdown(ctx)
	}
	return nil
}

// resolveCredential 配置值优先；为空时从 Secret Store 取，仍取不到则返回空串
func resolveCredential(configured string, store secrets.Store, key string) string {
	if configured != "" {
		return configured
	}
	if store == nil {
		return ""
	}
	value, err := store.Get(context.Background(), key)
	if err != nil {
		return ""
	}
	return value
}

// defaultModel 选择 provider 下的模型：优先 "default" 条目，否则取 key 排序后的第一个
func defaultModel(pc config.ProviderConfig) (string, config.ModelInfo) {
	if info, ok := pc.Models["default"]; ok {
		name := info.Name
		if name == "" {
			name = "default"
		}
		return name, info
	}
	keys := make([]string, 0, len(pc.Models))
	for k := range pc.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "", config.ModelInfo{}
	}
	info := pc.Models[keys[0]]
	name := info.Name
	if name == "" {
		name = keys[0]
	}
	return name, info
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
