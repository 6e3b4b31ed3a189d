package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，CLI 的 metrics 命令从这里导出
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		StepDuration, StepFailTotal, RunTotal,
		EmbeddingCacheTotal, ModelRequestDuration,
	)
}

// StepDuration 单个 Step 执行耗时（秒）
var StepDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "minirag_step_duration_seconds",
		Help:    "Step 执行耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"pipeline", "step"},
)

// StepFailTotal Step 失败次数
var StepFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "minirag_step_fail_total",
		Help: "Step 失败次数",
	},
	[]string{"pipeline", "step"},
)

// RunTotal Pipeline 运行次数（按状态）
var RunTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "minirag_run_total",
		Help: "Pipeline 运行次数（按状态）",
	},
	[]string{"pipeline", "status"}, // completed | failed
)

// EmbeddingCacheTotal 向量缓存命中情况
var EmbeddingCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "minirag_embedding_cache_total",
		Help: "向量缓存查询次数（按结果）",
	},
	[]string{"result"}, // hit | miss
)

// ModelRequestDuration 模型服务请求耗时（秒）
var ModelRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "minirag_model_request_duration_seconds",
		Help:    "模型服务请求耗时（秒）",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"kind", "model"}, // kind: chat | embedding | vision
)

// WritePrometheus 将 Prometheus 文本格式写入 w
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
