// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autosmm"

// Collector はPrometheusメトリクスを収集する実装。
// post.MetricsRecorder、publish.Recorder、importer.FailureRecorder、
// middleware.StatusRecorder を満たす。
type Collector struct {
	postsCreated   *prometheus.CounterVec
	createDenied   *prometheus.CounterVec
	publishResults *prometheus.CounterVec
	publishLatency prometheus.Histogram
	importFailures *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		postsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_created_total",
			Help:      "作成された予約投稿の合計数（プラン別）",
		}, []string{"plan"}),
		createDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_create_denied_total",
			Help:      "プラン制限で拒否された投稿作成の合計数（理由別）",
		}, []string{"reason"}),
		publishResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_publish_total",
			Help:      "配信処理の結果別合計数",
		}, []string{"status"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "配信リレー呼び出しのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_failures_total",
			Help:      "フィードインポート失敗の合計数（理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.postsCreated,
		c.createDenied,
		c.publishResults,
		c.publishLatency,
		c.importFailures,
		c.httpStatus,
	)

	return c
}

// RecordPostCreated は投稿作成を記録する。
func (c *Collector) RecordPostCreated(plan string) {
	c.postsCreated.WithLabelValues(plan).Inc()
}

// RecordCreateDenied はプラン制限による作成拒否を記録する。
func (c *Collector) RecordCreateDenied(reason string) {
	c.createDenied.WithLabelValues(reason).Inc()
}

// RecordPublish は配信結果とレイテンシを記録する。
func (c *Collector) RecordPublish(status model.PostStatus, duration time.Duration) {
	c.publishResults.WithLabelValues(string(status)).Inc()
	c.publishLatency.Observe(duration.Seconds())
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler は/metrics用のハンドラーを返す。
// スクレイプ自体の回数もpromhttp_metric_handler_requests_totalとしてregに記録する。
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.InstrumentMetricHandler(reg, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		EnableOpenMetrics: true,
	}))
}
