package pipeline

import (
	"fmt"
	"sync"
	"time"
)

var transitions = map[Stage][]Stage{
	StageDiscovered:   {StageDescribed, StageUnchanged, StageFailed},
	StageDescribed:    {StageUnchanged, StageInstrumented, StageFailed},
	StageUnchanged:    {StageWritten, StageFailed},
	StageInstrumented: {StageWritten, StageFailed},
}

// CanTransition reports whether a class may move from one stage to another.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError reports a move the state machine does not allow.
type TransitionError struct {
	File     string
	From, To Stage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: illegal transition %s -> %s", e.File, e.From, e.To)
}

// Tracker holds the stage of every class of a pass and mirrors each
// transition to a sink.
type Tracker struct {
	mu      sync.Mutex
	sink    ProgressSink
	stages  map[string]Stage
	started map[string]time.Time
	timings Timings
}

// NewTracker returns a Tracker reporting to sink (which may be nil).
func NewTracker(sink ProgressSink) *Tracker {
	return &Tracker{
		sink:    sink,
		stages:  make(map[string]Stage),
		started: make(map[string]time.Time),
	}
}

// Discover registers files in StageDiscovered.
func (t *Tracker) Discover(files ...string) {
	t.mu.Lock()
	now := time.Now()
	for _, f := range files {
		t.stages[f] = StageDiscovered
		t.started[f] = now
	}
	t.mu.Unlock()
	EmitQueued(t.sink, files)
}

// Advance moves file to stage. err is attached to the emitted event and
// is expected only with StageFailed.
func (t *Tracker) Advance(file string, stage Stage, err error) error {
	t.mu.Lock()
	from, ok := t.stages[file]
	if !ok || !CanTransition(from, stage) {
		t.mu.Unlock()
		if !ok {
			from = ""
		}
		return &TransitionError{File: file, From: from, To: stage}
	}
	t.stages[file] = stage
	now := time.Now()
	elapsed := now.Sub(t.started[file])
	t.started[file] = now
	t.timings.Add(stage, elapsed)
	t.mu.Unlock()

	status := StatusDone
	switch {
	case stage == StageFailed:
		status = StatusError
	case !stage.Terminal():
		status = StatusWorking
	}
	Emit(t.sink, Event{File: file, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	return nil
}

// Stage returns the current stage of file.
func (t *Tracker) Stage(file string) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stages[file]
	return s, ok
}

// Count returns how many files sit in stage.
func (t *Tracker) Count(stage Stage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.stages {
		if s == stage {
			n++
		}
	}
	return n
}

// Timings returns the time spent reaching each stage, summed over files.
func (t *Tracker) Timings() Timings {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Timings{}
	for s, d := range t.timings.stages {
		out.Add(s, d)
	}
	return out
}
