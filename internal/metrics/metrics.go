package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	creditsSpent *prometheus.CounterVec
	priceChecks  *prometheus.CounterVec
	imports      *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vintifi_image_operations_total",
			Help: "Image operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vintifi_image_operation_seconds",
			Help:    "Time spent in the image model per operation.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		creditsSpent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vintifi_credits_spent_total",
			Help: "Credits deducted by operation.",
		}, []string{"operation"}),
		priceChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vintifi_price_checks_total",
			Help: "Price checks by outcome.",
		}, []string{"outcome"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vintifi_imports_total",
			Help: "Listing imports by the tier that produced the result.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vintifi_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.operations, m.duration, m.creditsSpent, m.priceChecks, m.imports, m.httpRequests,
	)
	return m
}

// ObserveOperation records one finished image operation. A nil receiver
// is a no-op so callers can run without metrics.
func (m *Metrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	if outcome == "success" {
		m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) CreditsSpent(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.creditsSpent.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) PriceCheck(outcome string) {
	if m == nil {
		return
	}
	m.priceChecks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Import(source string) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(source).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
