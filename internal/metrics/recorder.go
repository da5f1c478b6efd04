// Package metrics records bootstrap run and step outcomes.
//
// Components receive a Recorder through dependency injection; the default is
// NoopRecorder, which costs nothing. Daemon mode swaps in the Prometheus
// recorder and exposes /metrics.
package metrics

import "time"

// Recorder defines the metrics operations the step runner emits.
type Recorder interface {
	RecordRunStart(kind string)
	RecordRunEnd(kind string, duration time.Duration, success bool)
	RecordStep(step string, duration time.Duration, success bool)
}

// NoopRecorder is the default Recorder. Its methods inline to nothing.
type NoopRecorder struct{}

func (NoopRecorder) RecordRunStart(string)                    {}
func (NoopRecorder) RecordRunEnd(string, time.Duration, bool) {}
func (NoopRecorder) RecordStep(string, time.Duration, bool)   {}
