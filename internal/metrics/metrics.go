package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	webhooks      *prometheus.CounterVec
	checkins      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	invoices      *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apgc_webhook_deliveries_total",
			Help: "Invoice webhook deliveries by outcome.",
		}, []string{"outcome"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apgc_checkin_scans_total",
			Help: "Check-in scans by verdict.",
		}, []string{"verdict"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apgc_ticket_notifications_total",
			Help: "Ticket notification attempts by status.",
		}, []string{"status"}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "apgc_invoices_created_total",
			Help: "Invoice creation attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	m.registry.MustRegister(
		m.webhooks,
		m.checkins,
		m.notifications,
		m.invoices,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) WebhookOutcome(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CheckInVerdict(verdict string) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(verdict).Inc()
}

func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

func (m *Metrics) Invoice(result string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
