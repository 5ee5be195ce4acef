// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordActivationSuccess(source string)
	RecordActivationFailure(source string, reason string)
	RecordDeactivation(note string)
	RecordReconcileCycle()
	RecordExpiredAccesses(count int)
	RecordProviderLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// 有効化失敗の分類値。
const (
	// FailReasonProvider はプロバイダー有効化の失敗。
	FailReasonProvider = "provider"
	// FailReasonCommit は永続化（トランザクション内ゲート含む）の失敗。
	FailReasonCommit = "commit"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	activationSuccess *prometheus.CounterVec
	activationFail    *prometheus.CounterVec
	deactivation      *prometheus.CounterVec
	reconcileCycles   prometheus.Counter
	expiredAccesses   prometheus.Counter
	providerLatency   *prometheus.HistogramVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywifi_activation_success_total",
			Help: "Wi-Fi有効化成功の合計数（発生源別）",
		}, []string{"source"}),
		activationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywifi_activation_fail_total",
			Help: "Wi-Fi有効化失敗の合計数（発生源・失敗要因別）",
		}, []string{"source", "reason"}),
		deactivation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywifi_deactivation_total",
			Help: "Wi-Fi無効化の合計数（理由別）",
		}, []string{"note"}),
		reconcileCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paywifi_reconcile_cycles_total",
			Help: "失効スキャンサイクルの合計数",
		}),
		expiredAccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paywifi_expired_accesses_total",
			Help: "失効処理されたアクセスの合計数",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paywifi_provider_latency_seconds",
			Help:    "ネットワークプロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paywifi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.activationSuccess,
		c.activationFail,
		c.deactivation,
		c.reconcileCycles,
		c.expiredAccesses,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordActivationSuccess は有効化成功を記録する。sourceはplan/voucher/admin。
func (c *Collector) RecordActivationSuccess(source string) {
	c.activationSuccess.WithLabelValues(source).Inc()
}

// RecordActivationFailure は有効化失敗を記録する。
// reasonはカーディナリティを抑えるため分類値（provider/commit）を渡す。
func (c *Collector) RecordActivationFailure(source string, reason string) {
	c.activationFail.WithLabelValues(source, reason).Inc()
}

// RecordDeactivation は無効化を記録する。noteはexpired/manual。
func (c *Collector) RecordDeactivation(note string) {
	c.deactivation.WithLabelValues(note).Inc()
}

// RecordReconcileCycle は失効スキャンの実行を記録する。
func (c *Collector) RecordReconcileCycle() {
	c.reconcileCycles.Inc()
}

// RecordExpiredAccesses は失効処理されたアクセス数を記録する。
func (c *Collector) RecordExpiredAccesses(count int) {
	c.expiredAccesses.Add(float64(count))
}

// RecordProviderLatency はプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(operation string, duration time.Duration) {
	c.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
