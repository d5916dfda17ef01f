// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the prometheus instrumentation for the modcore
// kernel: module load counts, scheduler tick activity, async task
// occupancy, and orchestrator action outcomes.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the kernel exposes. A Registry is safe
// for concurrent use; the underlying prometheus collectors handle their
// own locking. Only OrchestratorActions is updated by the kernel itself,
// through RecordAction from the orchestrator; the other collectors are
// registered and served, but nothing in the kernel increments or sets
// them, so they stay at zero unless a caller updates them directly.
type Registry struct {
	ModulesLoaded        prometheus.Counter
	ModulesBlocked       prometheus.Counter
	SchedulerTicks       prometheus.Counter
	SchedulerTasksRun    prometheus.Counter
	AsyncTasksRunning    prometheus.Gauge
	AsyncTasksPending    prometheus.Gauge
	OrchestratorActions  *prometheus.CounterVec
	reg                  *prometheus.Registry
}

// New creates a Registry with all collectors registered against a fresh
// prometheus registry (not the global default, so tests can create many
// independent Registries).
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		ModulesLoaded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modcore_modules_loaded_total",
			Help: "Total number of modules successfully loaded and registered.",
		}),
		ModulesBlocked: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modcore_modules_blocked_total",
			Help: "Total number of module loads blocked by validation or integrity failure.",
		}),
		SchedulerTicks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modcore_scheduler_ticks_total",
			Help: "Total number of scheduler tick() invocations.",
		}),
		SchedulerTasksRun: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "modcore_scheduler_tasks_run_total",
			Help: "Total number of scheduled tasks executed.",
		}),
		AsyncTasksRunning: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "modcore_async_tasks_running",
			Help: "Current number of running async tasks.",
		}),
		AsyncTasksPending: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "modcore_async_tasks_pending",
			Help: "Current number of pending (not yet started) async tasks.",
		}),
		OrchestratorActions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "modcore_orchestrator_actions_total",
			Help: "Total number of orchestrator actions executed, by action type and outcome.",
		}, []string{"action_type", "ok"}),
		reg: reg,
	}

	return r
}

// RecordAction increments the orchestrator action counter for the given
// action type and outcome.
func (r *Registry) RecordAction(actionType string, ok bool) {
	label := "true"
	if !ok {
		label = "false"
	}
	r.OrchestratorActions.WithLabelValues(actionType, label).Inc()
}

// Handler returns an http.Handler serving this registry's metrics in the
// prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing the metrics handler at /metrics on
// addr, and blocks until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
