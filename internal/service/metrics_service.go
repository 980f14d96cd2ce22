package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/classroom-grading-api/internal/models"
)

// Push outcomes recorded by the push worker.
const (
	PushDelivered = "delivered"
	PushSkipped   = "skipped"
	PushFailed    = "failed"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService is a no-op.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	notificationsCreated prometheus.Counter
	notificationsFailed  prometheus.Counter
	pushOutcomes         *prometheus.CounterVec
	reviewTransitions    *prometheus.CounterVec
	totalsRecomputed     prometheus.Counter
}

// NewMetricsService registers collectors. onlineUsers, when set, backs the realtime_online_users gauge.
func NewMetricsService(onlineUsers func() int) *MetricsService {
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

	notificationsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notification rows durably written",
	})

	notificationsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notification batches that could not be written",
	})

	pushOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_events_total",
		Help: "Real-time push attempts by outcome",
	}, []string{"outcome"})

	reviewTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grade_review_transitions_total",
		Help: "Grade review status transitions",
	}, []string{"to"})

	totalsRecomputed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "student_totals_updated_total",
		Help: "Cached student totals rewritten after a recompute",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, notificationsCreated, notificationsFailed, pushOutcomes, reviewTransitions, totalsRecomputed, goroutines)

	if onlineUsers != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "realtime_online_users",
			Help: "Users with an open push stream on this instance",
		}, func() float64 {
			return float64(onlineUsers())
		}))
	}

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		notificationsCreated: notificationsCreated,
		notificationsFailed:  notificationsFailed,
		pushOutcomes:         pushOutcomes,
		reviewTransitions:    reviewTransitions,
		totalsRecomputed:     totalsRecomputed,
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

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// NotificationsCreated counts durably written notification rows.
func (m *MetricsService) NotificationsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notificationsCreated.Add(float64(n))
}

// NotificationsFailed counts a failed notification batch.
func (m *MetricsService) NotificationsFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}

// PushOutcome counts one push attempt.
func (m *MetricsService) PushOutcome(outcome string) {
	if m == nil {
		return
	}
	m.pushOutcomes.WithLabelValues(outcome).Inc()
}

// ReviewTransition counts a review entering status.
func (m *MetricsService) ReviewTransition(status models.ReviewStatus) {
	if m == nil {
		return
	}
	m.reviewTransitions.WithLabelValues(string(status)).Inc()
}

// TotalsUpdated counts rewritten cached totals.
func (m *MetricsService) TotalsUpdated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.totalsRecomputed.Add(float64(n))
}
