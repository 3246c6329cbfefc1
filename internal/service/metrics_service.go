package service

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atelierhq/onboarding-api/internal/events"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// onboarding event bus.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	sessionsCompleted prometheus.Counter
	eventsEmitted     *prometheus.CounterVec
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "onboarding_sessions_completed_total",
		Help: "Total onboarding sessions submitted by clients",
	})

	eventsEmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_events_emitted_total",
		Help: "Total lifecycle events emitted on the in-process bus",
	}, []string{"topic"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsCompleted, eventsEmitted, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		sessionsCompleted: sessionsCompleted,
		eventsEmitted:     eventsEmitted,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// Register subscribes counting handlers for every bus topic.
func (m *MetricsService) Register(bus *events.Bus) {
	topics := []events.Topic{
		events.TopicSessionCreated,
		events.TopicSessionStarted,
		events.TopicSessionCompleted,
		events.TopicSessionApproved,
		events.TopicResponseSaved,
		events.TopicFileUploaded,
	}
	for _, topic := range topics {
		topic := topic
		bus.Subscribe(topic, func(ctx context.Context, payload interface{}) error {
			m.eventsEmitted.WithLabelValues(string(topic)).Inc()
			if topic == events.TopicSessionCompleted {
				m.sessionsCompleted.Inc()
			}
			return nil
		})
	}
}
