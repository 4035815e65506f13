package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "utmlink"

// Metrics holds the application's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	LinksCreatedTotal *prometheus.CounterVec
	ResolvesTotal     *prometheus.CounterVec
	LinksSweptTotal   prometheus.Counter
	ClickEventsTotal  *prometheus.CounterVec
}

// NewMetrics registers every collector with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status code.",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "HTTP requests currently in flight.",
			},
		),
		LinksCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_created_total",
				Help:      "Short links created, split by code origin.",
			},
			[]string{"origin"},
		),
		ResolvesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolves_total",
				Help:      "Short code resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		LinksSweptTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_swept_total",
				Help:      "Links transitioned to Expired by the sweeper.",
			},
		),
		ClickEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "click_events_total",
				Help:      "Recorded click events by device type.",
			},
			[]string{"device"},
		),
	}
}

func (m *Metrics) LinkCreated(customAlias bool) {
	if m == nil {
		return
	}
	origin := "generated"
	if customAlias {
		origin = "alias"
	}
	m.LinksCreatedTotal.WithLabelValues(origin).Inc()
}

// Resolved counts one resolution; outcome is "ok" or an error kind.
func (m *Metrics) Resolved(outcome string) {
	if m == nil {
		return
	}
	m.ResolvesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClickRecorded(device string) {
	if m == nil {
		return
	}
	m.ClickEventsTotal.WithLabelValues(device).Inc()
}

func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksSweptTotal.Add(float64(n))
}

func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.HTTPRequestsActive.Inc()
}

func (m *Metrics) RequestFinished(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsActive.Dec()
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
