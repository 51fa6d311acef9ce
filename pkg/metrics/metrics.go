package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ChatTotal, ChatDuration,
		CompletionDuration,
		ToolDuration, ToolFailTotal,
		RateLimitWaitSeconds,
	)
}

// ChatTotal 对话请求总数（按结局）
var ChatTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "massist_chat_total",
		Help: "对话请求总数（按结局）",
	},
	[]string{"outcome"}, // direct | tools | failed
)

// ChatDuration 单次对话端到端耗时（秒）
var ChatDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "massist_chat_duration_seconds",
		Help:    "单次对话端到端耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// CompletionDuration 补全服务调用耗时（秒，按 pass）
var CompletionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "massist_completion_duration_seconds",
		Help:    "补全服务调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"pass"}, // first | final
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "massist_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal 工具调用失败总数（错误负载计入，含未知工具）
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "massist_tool_fail_total",
		Help: "工具调用失败总数",
	},
	[]string{"tool"},
)

// RateLimitWaitSeconds 限流等待耗时（秒）
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "massist_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "target"}, // kind=llm, target=provider
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 路由复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
