package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	bookingTransitions *prometheus.CounterVec
	reconciliations    *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	sweptBookings      prometheus.Counter
	outboxDispatch     *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		bookingTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions applied, by target status.",
		}, []string{"to"}),
		reconciliations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Reconcile-from-payment calls, by result.",
		}, []string{"result"}),
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook events received, by type and result.",
		}, []string{"type", "result"}),
		sweptBookings: f.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_deleted_bookings_total",
			Help: "Abandoned bookings deleted by the cleanup sweeper.",
		}),
		outboxDispatch: f.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox events dispatched, by kind and result.",
		}, []string{"kind", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) BookingTransition(to string) {
	if m == nil {
		return
	}
	m.bookingTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) Reconciled(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) Webhook(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptBookings.Add(float64(n))
}

func (m *Metrics) OutboxDispatched(kind, result string) {
	if m == nil {
		return
	}
	m.outboxDispatch.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}
