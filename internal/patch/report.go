package patch

import (
	"context"

	"nullguard/internal/diag"
	"nullguard/internal/trace"
)

// traceReporter echoes diagnostics to the tracer carried by ctx.
type traceReporter struct {
	ctx context.Context
}

func (r traceReporter) Report(code diag.Code, sev diag.Severity, primary diag.Location, msg string, _ []diag.Note) {
	trace.Point(r.ctx, trace.ScopeClass, "diag", sev.String()+" "+code.ID()+" "+primary.String()+": "+msg)
}

func (p *pass) reporter(extra diag.Reporter) diag.Reporter {
	reps := diag.MultiReporter{diag.BagReporter{Bag: p.res.Diagnostics}, traceReporter{ctx: p.ctx}}
	if extra != nil {
		reps = append(reps, extra)
	}
	return reps
}
