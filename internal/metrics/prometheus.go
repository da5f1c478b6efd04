package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder on a prometheus registry.
type PrometheusRecorder struct {
	registry *prom.Registry

	runsStarted  *prom.CounterVec
	runsFinished *prom.CounterVec
	runDuration  *prom.HistogramVec
	stepDuration *prom.HistogramVec
	stepFailures *prom.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prom.NewRegistry(),
		runsStarted: prom.NewCounterVec(prom.CounterOpts{
			Name: "robostrap_runs_started_total",
			Help: "Bootstrap runs started, by kind.",
		}, []string{"kind"}),
		runsFinished: prom.NewCounterVec(prom.CounterOpts{
			Name: "robostrap_runs_finished_total",
			Help: "Bootstrap runs finished, by kind and result.",
		}, []string{"kind", "result"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "robostrap_run_duration_seconds",
			Help:    "End-to-end run duration.",
			Buckets: prom.ExponentialBuckets(1, 4, 10),
		}, []string{"kind"}),
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "robostrap_step_duration_seconds",
			Help:    "Per-step duration.",
			Buckets: prom.ExponentialBuckets(0.1, 4, 10),
		}, []string{"step"}),
		stepFailures: prom.NewCounterVec(prom.CounterOpts{
			Name: "robostrap_step_failures_total",
			Help: "Step failures, by step name.",
		}, []string{"step"}),
	}
	r.registry.MustRegister(r.runsStarted, r.runsFinished, r.runDuration, r.stepDuration, r.stepFailures)
	return r
}

func (r *PrometheusRecorder) RecordRunStart(kind string) {
	r.runsStarted.WithLabelValues(kind).Inc()
}

func (r *PrometheusRecorder) RecordRunEnd(kind string, duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.runsFinished.WithLabelValues(kind, result).Inc()
	r.runDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) RecordStep(step string, duration time.Duration, success bool) {
	r.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
	if !success {
		r.stepFailures.WithLabelValues(step).Inc()
	}
}

// Serve exposes /metrics on addr until the context is canceled.
func (r *PrometheusRecorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("Metrics listener started", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
