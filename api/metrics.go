package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/arrears-engine/payment"
	"github.com/warp/arrears-engine/portfolio"
)

// Metrics collects Prometheus metrics for the API and the portfolio.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	settlements     *prometheus.CounterVec
	bidders         *prometheus.GaugeVec
	amounts         *prometheus.GaugeVec
	delinquency     prometheus.Gauge
}

// NewMetrics creates a registry with the API and portfolio metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arrears_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arrears_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arrears_settlements_total",
		Help: "Units settled or unsettled.",
	}, []string{"action"})
	bidders := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arrears_portfolio_bidders",
		Help: "Bidders in the live portfolio by payment status.",
	}, []string{"status"})
	amounts := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arrears_portfolio_amount",
		Help: "Portfolio amounts in currency units.",
	}, []string{"kind"})
	delinquency := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arrears_portfolio_delinquency_rate",
		Help: "Percentage of bidders with an overdue unit.",
	})
	registry.MustRegister(requests, duration, settlements, bidders, amounts, delinquency)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		settlements:     settlements,
		bidders:         bidders,
		amounts:         amounts,
		delinquency:     delinquency,
	}
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CountSettlement increments the settle/unsettle counter.
func (m *Metrics) CountSettlement(action payment.SettlementAction) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(string(action)).Inc()
}

// ObservePortfolio sets the portfolio gauges.
func (m *Metrics) ObservePortfolio(s portfolio.Stats) {
	if m == nil {
		return
	}
	m.bidders.WithLabelValues(string(payment.StatusSettled)).Set(float64(s.Settled))
	m.bidders.WithLabelValues(string(payment.StatusPending)).Set(float64(s.Pending))
	m.bidders.WithLabelValues(string(payment.StatusOverdue)).Set(float64(s.Overdue))

	m.amounts.WithLabelValues("contracted").Set(s.TotalContracted.InexactFloat64())
	m.amounts.WithLabelValues("received").Set(s.Received.InexactFloat64())
	m.amounts.WithLabelValues("pending").Set(s.PendingAmount.InexactFloat64())
	m.amounts.WithLabelValues("overdue").Set(s.OverdueAmount.InexactFloat64())

	m.delinquency.Set(s.DelinquencyRate.InexactFloat64())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
