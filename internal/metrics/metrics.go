package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "consultation_queue",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consultation_queue",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "consultation_queue",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consultation_queue",
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Outbound queue emails by type and delivery status.",
		},
		[]string{"type", "status"},
	)

	notificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "consultation_queue",
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Duration of email provider calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"provider"},
	)

	queueSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consultation_queue",
			Subsystem: "queue",
			Name:      "submissions_total",
			Help:      "Accepted queue submissions.",
		},
		[]string{"queue_type"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "consultation_queue",
			Subsystem: "queue",
			Name:      "entries",
			Help:      "Entries last observed per queue type and status.",
		},
		[]string{"queue_type", "status"},
	)

	positionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consultation_queue",
			Subsystem: "monitor",
			Name:      "position_changes_total",
			Help:      "Position changes detected by the position monitor.",
		},
		[]string{"queue_type"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "consultation_queue",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs.",
		},
		[]string{"job", "success"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "consultation_queue",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"job"},
	)

	liveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "consultation_queue",
			Subsystem: "live",
			Name:      "clients",
			Help:      "Connected live queue feed clients.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		notifications,
		notificationDuration,
		queueSubmissions,
		queueDepth,
		positionChanges,
		jobRuns,
		jobDuration,
		liveClients,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler is a mux middleware collecting HTTP metrics labelled by route template.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordNotification(kind, status string) {
	notifications.WithLabelValues(kind, status).Inc()
}

func RecordProviderCall(provider string, duration time.Duration) {
	notificationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordSubmission(queueType string) {
	queueSubmissions.WithLabelValues(queueType).Inc()
}

func SetQueueDepth(queueType, status string, n int) {
	queueDepth.WithLabelValues(queueType, status).Set(float64(n))
}

func RecordPositionChange(queueType string) {
	positionChanges.WithLabelValues(queueType).Inc()
}

// RecordJobRun records metrics for scheduled job executions.
func RecordJobRun(job string, duration time.Duration, success bool) {
	if job == "" {
		job = "unknown"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	jobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func LiveClientConnected()    { liveClients.Inc() }
func LiveClientDisconnected() { liveClients.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// routeLabel keeps label cardinality bounded by using the route template instead of the raw path.
func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	if tpl, err := route.GetPathTemplate(); err == nil {
		return tpl
	}
	return "unmatched"
}
