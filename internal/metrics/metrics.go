// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/mentorbridge/internal/model"
	"github.com/hitoshi/mentorbridge/internal/query"
)

// 実行結果の分類
const (
	outcomeOK          = "ok"
	outcomeRemoteError = "remote_error"
	outcomeError       = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// テーブル実行器とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	query.Observer
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	remoteCalls   *prometheus.CounterVec
	remoteErrors  *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_remote_calls_total",
			Help: "テーブル別・操作別・結果別のリモート呼び出し数",
		}, []string{"table", "operation", "outcome"}),
		remoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_remote_errors_total",
			Help: "リモートが返したエラーコード別の件数",
		}, []string{"code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentorbridge_remote_latency_seconds",
			Help:    "リモート呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"table", "operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentorbridge_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.remoteCalls,
		c.remoteErrors,
		c.remoteLatency,
		c.httpStatus,
	)

	return c
}

// ObserveQuery はリモート呼び出し1回分の結果とレイテンシを記録する。
func (c *Collector) ObserveQuery(q query.Query, duration time.Duration, err error) {
	outcome := outcomeOK
	var remoteErr *model.RemoteError
	switch {
	case err == nil:
	case errors.As(err, &remoteErr):
		outcome = outcomeRemoteError
		code := remoteErr.Code
		if code == "" {
			code = strconv.Itoa(remoteErr.Status)
		}
		c.remoteErrors.WithLabelValues(code).Inc()
	default:
		outcome = outcomeError
	}

	c.remoteCalls.WithLabelValues(q.Table, string(q.Op), outcome).Inc()
	c.remoteLatency.WithLabelValues(q.Table, string(q.Op)).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
