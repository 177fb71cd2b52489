// Package metrics defines the observability hooks of the conversion
// pipeline and a Prometheus implementation.
package metrics

import "time"

// Outcome labels a finished conversion.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded" // converted with recovered issues
	OutcomeFailed   Outcome = "failed"
)

// Recorder receives conversion metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveConversion(source string, d time.Duration, outcome Outcome)
	AddRecoveredUnits(n int)
	IncImageFetch(success bool)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are
// not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveConversion(string, time.Duration, Outcome) {}
func (NoopRecorder) AddRecoveredUnits(int)                            {}
func (NoopRecorder) IncImageFetch(bool)                               {}
func (NoopRecorder) SetQueueDepth(int)                                {}
