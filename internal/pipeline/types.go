// Package pipeline defines the per-class state machine of a patch pass and
// the progress events emitted while a pass walks its input folder.
package pipeline

import "time"

// Stage is the state a class file has reached.
type Stage string

const (
	// StageDiscovered is a class file found by the folder walk.
	StageDiscovered Stage = "discovered"
	// StageDescribed is a class whose descriptor was built.
	StageDescribed Stage = "described"
	// StageUnchanged is a class that will be written as it was read.
	StageUnchanged Stage = "unchanged"
	// StageInstrumented is a class with at least one injected prologue.
	StageInstrumented Stage = "instrumented"
	// StageWritten is a class stored in the output folder.
	StageWritten Stage = "written"
	// StageFailed is a class that was abandoned; it is not written.
	StageFailed Stage = "failed"
)

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageWritten || s == StageFailed
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the class is waiting to be processed.
	StatusQueued Status = "queued"
	// StatusWorking indicates the stage is in progress.
	StatusWorking Status = "working"
	// StatusDone indicates the stage completed.
	StatusDone Status = "done"
	// StatusError indicates the stage failed.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole pass when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings accumulates time spent per stage across a pass.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Add accumulates dur for the given stage.
func (t *Timings) Add(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] += dur
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
