package client

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics collects Prometheus metrics for the send cycle. A nil *metrics
// records nothing.
type metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	authRetriesTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	throttleWait     *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	var m metrics
	var err error

	m.requestsTotal, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zap_requests_total",
			Help: "Total number of HTTP attempts sent",
		},
		[]string{"method", "status_code"},
	))
	if err != nil {
		return nil, err
	}

	m.requestDuration, err = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zap_request_duration_seconds",
			Help:    "Duration of HTTP attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status_code"},
	))
	if err != nil {
		return nil, err
	}

	m.requestsInFlight, err = register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zap_requests_in_flight",
			Help: "Number of HTTP attempts currently in flight",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	m.authRetriesTotal, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zap_auth_retries_total",
			Help: "Total number of attempts replayed after a 401",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	m.failuresTotal, err = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zap_failures_total",
			Help: "Total number of calls that ended in a failure, by kind",
		},
		[]string{"kind", "method"},
	))
	if err != nil {
		return nil, err
	}

	m.throttleWait, err = register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zap_throttle_wait_seconds",
			Help:    "Time attempts spent waiting for a rate limit token",
			Buckets: []float64{0, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// register adds c to reg, reusing the collector already registered under
// the same descriptor. A rebuilt Client keeps counting on the same series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	if are, ok := errors.AsType[prometheus.AlreadyRegisteredError](err); ok {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	var zero C
	return zero, err
}

func (m *metrics) inFlight(method string) func() {
	if m == nil {
		return func() {}
	}

	g := m.requestsInFlight.WithLabelValues(method)
	g.Inc()
	return g.Dec
}

func (m *metrics) recordAttempt(method string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}

	code := strconv.Itoa(statusCode)
	m.requestsTotal.WithLabelValues(method, code).Inc()
	m.requestDuration.WithLabelValues(method, code).Observe(d.Seconds())
}

func (m *metrics) recordAuthRetry(method string) {
	if m == nil {
		return
	}

	m.authRetriesTotal.WithLabelValues(method).Inc()
}

func (m *metrics) recordFailure(kind Kind, method string) {
	if m == nil {
		return
	}

	m.failuresTotal.WithLabelValues(string(kind), method).Inc()
}

func (m *metrics) recordThrottleWait(r *http.Request, d time.Duration) {
	if m == nil {
		return
	}

	m.throttleWait.WithLabelValues(r.Method).Observe(d.Seconds())
}
