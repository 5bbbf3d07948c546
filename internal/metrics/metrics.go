package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/xtrntr/cryptopro/internal/models"
)

// Metrics holds the Prometheus collectors of the service
type Metrics struct {
	tradesTotal         *prometheus.CounterVec
	tradeVolumeUSD      *prometheus.CounterVec
	tradeRejections     *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	botUpdatesTotal     *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptopro_trades_total",
			Help: "Executed trades by side and asset",
		}, []string{"side", "asset"}),
		tradeVolumeUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptopro_trade_volume_usd_total",
			Help: "USD value of executed trades",
		}, []string{"side", "asset"}),
		tradeRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptopro_trade_rejections_total",
			Help: "Rejected trades by side and reason",
		}, []string{"side", "reason"}),
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptopro_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptopro_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		botUpdatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptopro_bot_updates_total",
			Help: "Telegram updates handled by kind",
		}, []string{"kind"}),
	}
}

// RecordTrade counts an executed trade
func (m *Metrics) RecordTrade(side models.EntryType, asset models.Asset, total decimal.Decimal) {
	m.tradesTotal.WithLabelValues(string(side), string(asset)).Inc()
	m.tradeVolumeUSD.WithLabelValues(string(side), string(asset)).Add(total.InexactFloat64())
}

// RecordRejection counts a rejected trade
func (m *Metrics) RecordRejection(side models.EntryType, reason string) {
	m.tradeRejections.WithLabelValues(string(side), reason).Inc()
}

// RecordBotUpdate counts a handled Telegram update
func (m *Metrics) RecordBotUpdate(kind string) {
	m.botUpdatesTotal.WithLabelValues(kind).Inc()
}

// Middleware instruments HTTP handlers. Routes are labelled by their chi
// pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
