// Package patch walks a folder of class files, injects null guards into
// every behavior whose parameters resolve to non-null, and writes the result
// to an output folder.
package patch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"nullguard/internal/classpath"
	"nullguard/internal/diag"
	"nullguard/internal/model"
	"nullguard/internal/nullness"
	"nullguard/internal/pipeline"
	"nullguard/internal/scope"
	"nullguard/internal/trace"
	"nullguard/internal/version"
)

// Processor runs passes against a caller-owned resolution context. Passes
// on one Processor are serialized; the context is reset when a pass starts.
type Processor struct {
	mu   sync.Mutex
	cp   *classpath.Context
	opts Options
}

// NewProcessor returns a Processor using cp, which must list the input
// folder of every pass it runs.
func NewProcessor(cp *classpath.Context, opts Options) *Processor {
	return &Processor{cp: cp, opts: opts}
}

// ProcessFolder instruments every class under input into output. The
// resolution context covers input followed by opts.Classpath and is closed
// when the pass ends. Only folder-level problems are returned as errors;
// per-class failures are listed in the Result.
func ProcessFolder(ctx context.Context, input, output string, opts Options) (*Result, error) {
	if err := checkDir(input); err != nil {
		return nil, err
	}
	res := newResult(opts)
	rep := diag.MultiReporter{diag.BagReporter{Bag: res.Diagnostics}, traceReporter{ctx: ctx}}
	if opts.Reporter != nil {
		rep = append(rep, opts.Reporter)
	}
	paths := append([]string{input}, opts.Classpath...)
	cp, err := classpath.Open(ctx, paths, classpath.Options{CacheSize: opts.CacheSize, Disk: opts.Disk, Reporter: rep})
	if err != nil {
		return nil, &FolderError{Path: input, Err: err}
	}
	defer cp.Close()

	p := NewProcessor(cp, opts)
	return p.process(ctx, input, output, res)
}

// Process runs one pass from input to output.
func (p *Processor) Process(ctx context.Context, input, output string) (*Result, error) {
	if err := checkDir(input); err != nil {
		return nil, err
	}
	return p.process(ctx, input, output, newResult(p.opts))
}

func newResult(opts Options) *Result {
	limit := opts.MaxDiagnostics
	if limit <= 0 {
		limit = DefaultMaxDiagnostics
	}
	return &Result{Diagnostics: diag.NewBag(limit)}
}

func (p *Processor) process(ctx context.Context, input, output string, res *Result) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cp.Reset()

	ctx, span := trace.Start(ctx, trace.ScopePass, "patch")
	defer func() {
		span.End(fmt.Sprintf("patched=%d unchanged=%d copied=%d failures=%d", res.Patched, res.Unchanged, res.Copied, len(res.Failures)))
	}()

	files, err := walk(input, output)
	if err != nil {
		return nil, err
	}
	var classes []string
	for _, f := range files {
		if strings.HasSuffix(f, classSuffix) {
			classes = append(classes, f)
		}
	}

	ps := &pass{
		ctx:     ctx,
		input:   input,
		output:  output,
		opts:    p.opts,
		res:     res,
		tracker: pipeline.NewTracker(p.opts.Sink),
	}
	if ps.opts.Version == "" {
		ps.opts.Version = version.Version
	}
	ps.rep = ps.reporter(p.opts.Reporter)
	scopes := scope.NewReader(p.cp, nullness.NewVocabulary(p.opts.Markers...))
	ps.builder = model.NewBuilder(p.cp, scopes, ps.rep)
	ps.tracker.Discover(classes...)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !strings.HasSuffix(f, classSuffix) {
			ps.resource(f)
			continue
		}
		ps.class(f)
	}
	res.Timings = ps.tracker.Timings()
	trace.Point(ctx, trace.ScopePass, "cache", cacheStats(p.cp))
	return res, nil
}

func cacheStats(cp *classpath.Context) string {
	hits, misses := cp.Stats()
	return fmt.Sprintf("summary cache hits=%d misses=%d", hits, misses)
}

// pass holds the state of one ProcessFolder call.
type pass struct {
	ctx     context.Context
	input   string
	output  string
	opts    Options
	res     *Result
	rep     diag.Reporter
	builder *model.Builder
	tracker *pipeline.Tracker
}

func (p *pass) src(rel string) string {
	return filepath.Join(p.input, filepath.FromSlash(rel))
}

func (p *pass) dst(rel string) string {
	return filepath.Join(p.output, filepath.FromSlash(rel))
}

func (p *pass) resource(rel string) {
	if err := copyFile(p.src(rel), p.dst(rel)); err != nil {
		p.fail(&Failure{Kind: FailureIO, Path: rel, Err: err}, diag.IOWriteFailed)
		return
	}
	p.res.Copied++
}

// fail records f and reports it as an error diagnostic.
func (p *pass) fail(f *Failure, code diag.Code) {
	p.res.Failures = append(p.res.Failures, f)
	diag.ReportError(p.rep, code, f.Location(), f.Err.Error()).Emit()
}

// advance moves rel through the state machine. A refused transition is a
// bug in the pass and is surfaced through the tracer only.
func (p *pass) advance(rel string, stage pipeline.Stage, err error) {
	if terr := p.tracker.Advance(rel, stage, err); terr != nil {
		trace.Point(p.ctx, trace.ScopeClass, "state", terr.Error())
	}
}
