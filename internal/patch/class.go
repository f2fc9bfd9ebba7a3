package patch

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"nullguard/internal/classfile"
	"nullguard/internal/codegen"
	"nullguard/internal/diag"
	"nullguard/internal/nullness"
	"nullguard/internal/pipeline"
	"nullguard/internal/trace"
)

// class takes one class file from Discovered to Written or Failed.
func (p *pass) class(rel string) {
	ctx, span := trace.Start(trace.WithSubject(p.ctx, rel), trace.ScopeClass, "class")
	out := &ClassOutcome{Path: rel}
	p.res.Classes = append(p.res.Classes, out)
	defer func() {
		out.Stage, _ = p.tracker.Stage(rel)
		span.End(string(out.Stage))
	}()

	loc := diag.Location{Path: rel}
	data, err := os.ReadFile(p.src(rel))
	if err != nil {
		p.fail(&Failure{Kind: FailureIO, Path: rel, Err: err}, diag.IOReadFailed)
		p.advance(rel, pipeline.StageFailed, err)
		return
	}

	// File names may come back decomposed (NFD); class names are compared in NFC.
	name := norm.NFC.String(strings.TrimSuffix(rel, classSuffix))
	if isMetadataUnit(rel) {
		p.keep(rel, data, true)
		return
	}
	if !validBinaryName(name) {
		diag.ReportWarning(p.rep, diag.StrMalformedName, loc, fmt.Sprintf("%q is not a valid class name; copied unchanged", name)).Emit()
		p.keep(rel, data, false)
		return
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		diag.ReportWarning(p.rep, diag.StrUnparsableClass, loc, err.Error()+"; copied unchanged").Emit()
		p.keep(rel, data, false)
		return
	}
	if declared, err := cf.Name(); err != nil || norm.NFC.String(declared) != name {
		diag.ReportWarning(p.rep, diag.StrNameMismatch, loc, fmt.Sprintf("file declares %q; copied unchanged", declared)).Emit()
		p.keep(rel, data, false)
		return
	}
	out.Class = classfile.DottedName(name)
	loc.Class = out.Class
	if cf.Major < classfile.MajorJava5 {
		diag.ReportWarning(p.rep, diag.StrOldClassVersion, loc, fmt.Sprintf("class file version %d predates annotations; copied unchanged", cf.Major)).Emit()
		p.keep(rel, data, false)
		return
	}
	if IsInstrumented(cf) {
		v, _ := ProcessorVersion(cf)
		diag.ReportInfo(p.rep, diag.StrAlreadyInstrumented, loc, fmt.Sprintf("already instrumented (processorVersion=%s); copied unchanged", v)).Emit()
		p.keep(rel, data, false)
		return
	}

	desc, err := p.builder.Build(ctx, cf, rel)
	if err != nil {
		var conflict *nullness.ConflictError
		if errors.As(err, &conflict) {
			p.fail(&Failure{Kind: FailureConflict, Path: rel, Class: out.Class, Err: err}, diag.NulConflict)
			p.advance(rel, pipeline.StageFailed, err)
			return
		}
		diag.ReportWarning(p.rep, diag.StrUnparsableClass, loc, err.Error()+"; copied unchanged").Emit()
		p.keep(rel, data, false)
		return
	}
	p.advance(rel, pipeline.StageDescribed, nil)

	target := codegen.Target{Owner: desc.Name, AssertionsFlagOwner: desc.AssertionsFlagOwner}
	for _, b := range desc.Behaviors {
		guards := Guards(b, p.opts.Config)
		if len(guards) == 0 {
			continue
		}
		bloc := loc
		bloc.Behavior = b.DisplayName()
		bctx, bspan := trace.Start(ctx, trace.ScopeBehavior, "inject")
		res, err := codegen.Inject(cf, cf.Methods[b.Index], target, guards)
		var unsupported *codegen.UnsupportedError
		switch {
		case errors.As(err, &unsupported):
			bspan.End(b.Key() + " skipped")
			diag.ReportWarning(p.rep, diag.StrUnknownCodeAttr, bloc, err.Error()+"; behavior left unchanged").Emit()
			continue
		case err != nil:
			bspan.End(b.Key() + " failed")
			p.failCodegen(rel, bloc, err)
			return
		}
		trace.Point(bctx, trace.ScopeBehavior, "guards", describeGuards(guards))
		bspan.End(fmt.Sprintf("%s prologue=%d max_stack=%d->%d", b.Key(), len(res.Prologue.Code), res.MaxStackWas, res.MaxStack))
		out.Guards += len(guards)
	}

	if out.Guards == 0 {
		p.keep(rel, data, false)
		return
	}
	p.advance(rel, pipeline.StageInstrumented, nil)
	if err := addMarker(cf, p.opts.Version); err != nil {
		p.failCodegen(rel, loc, err)
		return
	}
	patched, err := cf.Bytes()
	if err != nil {
		p.failCodegen(rel, loc, err)
		return
	}
	if err := writeFile(p.dst(rel), patched); err != nil {
		p.fail(&Failure{Kind: FailureIO, Path: rel, Class: loc.Class, Err: err}, diag.IOWriteFailed)
		p.advance(rel, pipeline.StageFailed, err)
		return
	}
	p.advance(rel, pipeline.StageWritten, nil)
	p.res.Patched++
}

// keep writes the original bytes. Metadata units count as copies.
func (p *pass) keep(rel string, data []byte, metadata bool) {
	p.advance(rel, pipeline.StageUnchanged, nil)
	if err := writeFile(p.dst(rel), data); err != nil {
		p.fail(&Failure{Kind: FailureIO, Path: rel, Err: err}, diag.IOWriteFailed)
		p.advance(rel, pipeline.StageFailed, err)
		return
	}
	p.advance(rel, pipeline.StageWritten, nil)
	if metadata {
		p.res.Copied++
	} else {
		p.res.Unchanged++
	}
}

func (p *pass) failCodegen(rel string, loc diag.Location, err error) {
	code := diag.GenEncode
	switch {
	case errors.Is(err, classfile.ErrPoolFull):
		code = diag.GenPoolFull
	case errors.Is(err, classfile.ErrTooLarge):
		code = diag.GenCodeTooLarge
	}
	p.fail(&Failure{Kind: FailureCodegen, Path: rel, Class: loc.Class, Behavior: loc.Behavior, Err: err}, code)
	p.advance(rel, pipeline.StageFailed, err)
}

func describeGuards(guards []codegen.Guard) string {
	parts := make([]string, len(guards))
	for i, g := range guards {
		parts[i] = fmt.Sprintf("%s@%d:%s", g.Name, g.Slot, g.Check)
	}
	return strings.Join(parts, " ")
}
