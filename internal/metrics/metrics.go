// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// sync.Engineとsyncqueue.Processorのレコーダーインターフェースを満たす。
type Collector struct {
	syncSuccess         prometheus.Counter
	syncFail            prometheus.Counter
	syncLatency         prometheus.Histogram
	projectsUpserted    prometheus.Counter
	commitmentsUpserted prometheus.Counter
	tokenRefresh        *prometheus.CounterVec
	queueProcessed      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genba_sync_success_total",
			Help: "ユーザー同期成功の合計数",
		}),
		syncFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genba_sync_fail_total",
			Help: "ユーザー同期失敗の合計数",
		}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "genba_sync_latency_seconds",
			Help:    "ユーザー同期1回のレイテンシ（秒）",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		projectsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genba_projects_upserted_total",
			Help: "アップサートされたプロジェクトの合計数",
		}),
		commitmentsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genba_commitments_upserted_total",
			Help: "アップサートされた下請契約の合計数",
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genba_token_refresh_total",
			Help: "結果別のトークンリフレッシュ数",
		}, []string{"result"}),
		queueProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genba_queue_processed_total",
			Help: "結果別の同期キュー処理数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.projectsUpserted,
		c.commitmentsUpserted,
		c.tokenRefresh,
		c.queueProcessed,
	)

	return c
}

// RecordSyncSuccess はユーザー同期の成功を記録する。
func (c *Collector) RecordSyncSuccess() {
	c.syncSuccess.Inc()
}

// RecordSyncFailure はユーザー同期の失敗を記録する。
func (c *Collector) RecordSyncFailure() {
	c.syncFail.Inc()
}

// RecordSyncLatency は同期1回のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(d time.Duration) {
	c.syncLatency.Observe(d.Seconds())
}

// RecordProjectsUpserted はアップサートされたプロジェクト数を記録する。
func (c *Collector) RecordProjectsUpserted(count int) {
	c.projectsUpserted.Add(float64(count))
}

// RecordCommitmentsUpserted はアップサートされた下請契約数を記録する。
func (c *Collector) RecordCommitmentsUpserted(count int) {
	c.commitmentsUpserted.Add(float64(count))
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordQueueProcessed は同期キューのバッチ処理結果を記録する。
func (c *Collector) RecordQueueProcessed(succeeded, failed int) {
	c.queueProcessed.WithLabelValues("succeeded").Add(float64(succeeded))
	c.queueProcessed.WithLabelValues("failed").Add(float64(failed))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
