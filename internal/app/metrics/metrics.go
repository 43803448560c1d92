// Package metrics exposes Prometheus collectors for the launch layer.
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
			Namespace: "launch_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launch_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "launch_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	curveTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launch_layer",
			Subsystem: "curve",
			Name:      "trades_total",
			Help:      "Total number of curve trades.",
		},
		[]string{"side", "status"},
	)

	curveFees = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launch_layer",
			Subsystem: "curve",
			Name:      "protocol_fee_wei_total",
			Help:      "Total protocol fees accrued, in collateral base units.",
		},
		[]string{"side"},
	)

	graduations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "launch_layer",
			Subsystem: "curve",
			Name:      "graduations_total",
			Help:      "Total number of curves that graduated.",
		},
	)

	vestingClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launch_layer",
			Subsystem: "vesting",
			Name:      "claims_total",
			Help:      "Total number of vesting claims.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		curveTrades,
		curveFees,
		graduations,
		vestingClaims,
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

// RecordTrade counts a buy or sell attempt and, on success, the fee taken.
// The fee is reported as a float for Prometheus; exact amounts live in the
// event stream.
func RecordTrade(side string, success bool, fee float64) {
	status := "error"
	if success {
		status = "ok"
	}
	curveTrades.WithLabelValues(side, status).Inc()
	if success && fee > 0 {
		curveFees.WithLabelValues(side).Add(fee)
	}
}

// RecordGraduation counts a graduation transition.
func RecordGraduation() {
	graduations.Inc()
}

// RecordVestingClaim counts a vesting claim attempt.
func RecordVestingClaim(success bool) {
	status := "error"
	if success {
		status = "ok"
	}
	vestingClaims.WithLabelValues(status).Inc()
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

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "tokens" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/tokens"
	}
	if len(parts) == 2 {
		return "/tokens/:token"
	}
	return "/tokens/:token/" + strings.Join(parts[2:], "/")
}
