package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "polls_total",
			Help:      "Number of poll ticks by outcome (absent, unchanged, changed).",
		}, []string{"outcome"},
	)
	reads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "reads_total",
			Help:      "Number of status file reads attempted.",
		},
	)
	readFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "read_failures_total",
			Help:      "Number of status file reads that failed.",
		},
	)
	statusChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "status_changes_total",
			Help:      "Number of parsed status values applied to the store.",
		},
	)
	progress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "progress",
			Help:      "Last applied progress value.",
		},
	)
	pollInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "updatewatch",
			Subsystem: "watch",
			Name:      "poll_interval_seconds",
			Help:      "Current polling interval.",
		},
	)
	writes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "file",
			Name:      "writes_total",
			Help:      "Number of status file writes by source (bootstrap, simulator).",
		}, []string{"source"},
	)
	writeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "updatewatch",
			Subsystem: "file",
			Name:      "write_failures_total",
			Help:      "Number of failed status file writes by source.",
		}, []string{"source"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{polls, reads, readFailures, statusChanges, progress, pollInterval, writes, writeFailures}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// NewServer returns an HTTP server exposing /metrics on addr. The caller
// owns its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Helpers below no-op until Register has succeeded.

func IncPoll(outcome string) {
	if regOK.Load() {
		polls.WithLabelValues(outcome).Inc()
	}
}

func IncRead() {
	if regOK.Load() {
		reads.Inc()
	}
}

func IncReadFailure() {
	if regOK.Load() {
		readFailures.Inc()
	}
}

func ObserveStatus(p int) {
	if regOK.Load() {
		statusChanges.Inc()
		progress.Set(float64(p))
	}
}

func SetPollInterval(d time.Duration) {
	if regOK.Load() {
		pollInterval.Set(d.Seconds())
	}
}

func IncWrite(source string, ok bool) {
	if !regOK.Load() {
		return
	}
	writes.WithLabelValues(source).Inc()
	if !ok {
		writeFailures.WithLabelValues(source).Inc()
	}
}
