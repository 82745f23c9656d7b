package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coop_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coop_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coop_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	contributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coop_ledger",
			Subsystem: "contributions",
			Name:      "recorded_total",
			Help:      "Total number of contributions recorded, by resulting status.",
		},
		[]string{"status"},
	)

	loanPayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coop_ledger",
			Subsystem: "loans",
			Name:      "payments_total",
			Help:      "Total number of loan payments posted, by resulting loan status.",
		},
		[]string{"status"},
	)

	sweepActivations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "coop_ledger",
			Subsystem: "loans",
			Name:      "sweep_activations_total",
			Help:      "Total number of scheduled loans moved to pending by the sweep.",
		},
	)

	distributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coop_ledger",
			Subsystem: "dividends",
			Name:      "distribution_runs_total",
			Help:      "Total number of dividend distribution runs, by phase.",
		},
		[]string{"phase"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		contributions,
		loanPayments,
		sweepActivations,
		distributions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
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

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordContribution counts a recorded contribution by its resulting status.
func RecordContribution(status string) {
	if status == "" {
		status = "unknown"
	}
	contributions.WithLabelValues(status).Inc()
}

// RecordLoanPayment counts a posted loan payment by the loan's resulting status.
func RecordLoanPayment(status string) {
	if status == "" {
		status = "unknown"
	}
	loanPayments.WithLabelValues(status).Inc()
}

// RecordSweepActivations counts loans activated by one sweep run.
func RecordSweepActivations(count int) {
	if count <= 0 {
		return
	}
	sweepActivations.Add(float64(count))
}

// RecordDistribution counts a dividend run phase (calculated or distributed).
func RecordDistribution(phase string) {
	if phase == "" {
		phase = "unknown"
	}
	distributions.WithLabelValues(phase).Inc()
}

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

// canonicalPath collapses resource identifiers so the label set stays small.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	root := "/" + parts[0]
	switch parts[0] {
	case "members", "contributions", "loans", "withdrawals", "distributions", "wallets":
		if len(parts) == 1 {
			return root
		}
		if len(parts) == 2 {
			return root + "/:id"
		}
		return root + "/:id/" + parts[2]
	default:
		return root
	}
}
