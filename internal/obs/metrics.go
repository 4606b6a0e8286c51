// Package obs はPrometheusメトリクスを提供する。
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はゲートウェイのメトリクス一式。
// nilのMetricsに対するメソッド呼び出しは何もしない。
type Metrics struct {
	// inFlight は処理中のHTTPリクエスト数(http_in_flight_requests)。
	inFlight prometheus.Gauge
	// requestsTotal はmethod・path・status別のリクエスト数(http_requests_total)。
	requestsTotal *prometheus.CounterVec
	// requestDuration はリクエストの処理時間(http_request_duration_seconds)。
	requestDuration *prometheus.HistogramVec
	// authAttempts はサインインとサインアップの結果別の試行回数(auth_attempts_total)。
	authAttempts *prometheus.CounterVec
	// upstreamRequests は上流バックエンドへの転送数(gateway_upstream_requests_total)。
	upstreamRequests *prometheus.CounterVec
	// buildInfo はバージョンをラベルに持つ定数1のゲージ(build_info)。
	buildInfo *prometheus.GaugeVec
	// gatherer はHandlerが値を収集する取得元。
	gatherer prometheus.Gatherer
}

// New はメトリクスを生成し、regに登録する。
// regがprometheus.Gathererも実装していれば、Handlerはそこから値を収集する。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Sign-in and sign-up attempts by outcome.",
		}, []string{"operation", "outcome"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Requests forwarded to the upstream backend.",
		}, []string{"method", "status"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Gateway build information.",
		}, []string{"version"}),
		gatherer: prometheus.DefaultGatherer,
	}
	reg.MustRegister(m.inFlight, m.requestsTotal, m.requestDuration, m.authAttempts, m.upstreamRequests, m.buildInfo)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// SetBuildInfo はbuild_info{version}を1に設定する。
func (m *Metrics) SetBuildInfo(version string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version).Set(1)
}

// ObserveAuth は認証操作の結果を記録する。
func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(operation, outcome).Inc()
}

// ObserveUpstream は上流への転送結果を記録する。
// statusが0の場合は到達不能として"error"を記録する。
func (m *Metrics) ObserveUpstream(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(method, label).Inc()
}

// Instrument はリクエスト数・レイテンシ・処理中リクエスト数を計測するGinミドルウェアを返す。
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		c.Next()

		// ルート未一致のパスはラベルの種類が際限なく増えるためまとめる
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// Handler はPrometheusのスクレイプ用ハンドラーを返す。
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
