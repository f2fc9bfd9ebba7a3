package patch

import (
	"nullguard/internal/classpath"
	"nullguard/internal/config"
	"nullguard/internal/diag"
	"nullguard/internal/nullness"
	"nullguard/internal/pipeline"
)

// DefaultMaxDiagnostics bounds the diagnostics kept in a Result.
const DefaultMaxDiagnostics = 4096

// Options configures a pass.
type Options struct {
	Config config.Configuration
	// Markers selects the annotation families recognised; empty means all.
	Markers []nullness.MarkerKind
	// Classpath lists directories and jars consulted for cross references.
	// The input folder is always searched first.
	Classpath []string
	// Disk optionally persists class summaries between runs.
	Disk      *classpath.DiskCache
	CacheSize int
	// Version is recorded in the marker of instrumented classes.
	Version string
	Sink    pipeline.ProgressSink
	// Reporter receives every diagnostic in addition to Result.Diagnostics.
	Reporter       diag.Reporter
	MaxDiagnostics int
}

// ClassOutcome records where one class file ended up.
type ClassOutcome struct {
	Path   string         `json:"path" yaml:"path"`
	Class  string         `json:"class,omitempty" yaml:"class,omitempty"`
	Stage  pipeline.Stage `json:"stage" yaml:"stage"`
	Guards int            `json:"guards,omitempty" yaml:"guards,omitempty"`
}

// Result summarizes a pass.
type Result struct {
	// Patched counts instrumented classes.
	Patched int `json:"patched" yaml:"patched"`
	// Unchanged counts classes written as they were read.
	Unchanged int `json:"unchanged" yaml:"unchanged"`
	// Copied counts resources and module-info / package-info files.
	Copied   int             `json:"copied" yaml:"copied"`
	Failures []*Failure      `json:"failures,omitempty" yaml:"failures,omitempty"`
	Classes  []*ClassOutcome `json:"classes,omitempty" yaml:"classes,omitempty"`

	Diagnostics *diag.Bag        `json:"-" yaml:"-"`
	Timings     pipeline.Timings `json:"-" yaml:"-"`
}

// OK reports whether no class failed.
func (r *Result) OK() bool {
	return len(r.Failures) == 0
}
