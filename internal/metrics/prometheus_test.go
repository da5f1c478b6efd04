package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounters(t *testing.T) {
	r := NewPrometheusRecorder()

	r.RecordRunStart("bootstrap")
	r.RecordRunEnd("bootstrap", 90*time.Second, false)
	r.RecordStep("clone-source", 42*time.Second, true)
	r.RecordStep("create-conda-env", 5*time.Second, false)

	if got := testutil.ToFloat64(r.runsStarted.WithLabelValues("bootstrap")); got != 1 {
		t.Errorf("runs started: got %v", got)
	}
	if got := testutil.ToFloat64(r.runsFinished.WithLabelValues("bootstrap", "failure")); got != 1 {
		t.Errorf("runs finished failure: got %v", got)
	}
	if got := testutil.ToFloat64(r.stepFailures.WithLabelValues("create-conda-env")); got != 1 {
		t.Errorf("step failures: got %v", got)
	}
	if got := testutil.ToFloat64(r.stepFailures.WithLabelValues("clone-source")); got != 0 {
		t.Errorf("successful step must not count as failure: got %v", got)
	}
}

func TestPrometheusRecorderRegistryGathers(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordStep("compile", time.Minute, true)

	families, err := r.registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var seen bool
	for _, fam := range families {
		if fam.GetName() == "robostrap_step_duration_seconds" {
			seen = true
		}
	}
	if !seen {
		t.Error("step duration histogram not registered")
	}
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = NewPrometheusRecorder()
	n := NoopRecorder{}
	n.RecordRunStart("bootstrap")
	n.RecordRunEnd("bootstrap", 0, true)
	n.RecordStep("clone-source", 0, true)
}
