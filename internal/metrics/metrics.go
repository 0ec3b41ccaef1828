// Package metrics exposes the prometheus collectors lockbox updates.
//
// Every method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type (
	Metrics struct {
		registry *prometheus.Registry

		httpRequests *prometheus.CounterVec
		httpDuration *prometheus.HistogramVec
		authEvents   *prometheus.CounterVec
		notesStored  prometheus.Counter
	}

	statusWriter struct {
		http.ResponseWriter
		code int
	}
)

// Outcomes used with AuthEvent.
const (
	Success  = "success"
	Rejected = "rejected"
	Failed   = "failed"
)

// New registers every collector, plus the go and process collectors, in a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbox_http_requests_total",
			Help: "HTTP requests served, by route, status code and method",
		}, []string{"route", "code", "method"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lockbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"route"}),
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lockbox_auth_events_total",
			Help: "Account actions by outcome",
		}, []string{"action", "outcome"}),
		notesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "lockbox_notes_stored_total",
			Help: "Secrets persisted",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthEvent(action, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) NoteStored() {
	if m == nil {
		return
	}
	m.notesStored.Inc()
}

// Instrument counts and times every request served by next under the
// route label.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.code == 0 {
			sw.code = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(sw.code), r.Method).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *statusWriter) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}
