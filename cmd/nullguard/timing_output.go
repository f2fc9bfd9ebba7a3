package main

import (
	"fmt"
	"io"

	"nullguard/internal/observ"
	"nullguard/internal/pipeline"
)

var timedStages = []pipeline.Stage{
	pipeline.StageDescribed,
	pipeline.StageUnchanged,
	pipeline.StageInstrumented,
	pipeline.StageWritten,
	pipeline.StageFailed,
}

// addStageTimings folds the per-class stage totals of a pass into timer.
func addStageTimings(timer *observ.Timer, timings pipeline.Timings) {
	for _, stage := range timedStages {
		if timings.Has(stage) {
			timer.Add("classes "+string(stage), timings.Duration(stage))
		}
	}
}

func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer == nil {
		return
	}
	if _, err := fmt.Fprint(out, timer.Summary()); err != nil {
		panic(err)
	}
}
