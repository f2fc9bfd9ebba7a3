package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nullguard/internal/config"
	"nullguard/internal/trace"
)

var (
	activeTracer = trace.Nop
	traceCleanup func()
)

func runTraceCleanup() {
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
}

// setupTracing inspects trace-related flags and initializes the tracer.
// When --trace-level is not given, the [trace] level of the project file
// applies.
func setupTracing(cmd *cobra.Command) (func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if !root.PersistentFlags().Changed("trace-level") {
		if lvl := projectTraceLevel(cmd); lvl != "" {
			levelStr = lvl
		}
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}
	if level == trace.LevelOff && traceOutput == "" {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	// An output file without an explicit level records pass boundaries.
	if level == trace.LevelOff {
		level = trace.LevelPhase
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	if traceOutput != "" && mode == trace.ModeRing && !root.PersistentFlags().Changed("trace-mode") {
		mode = trace.ModeStream
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	activeTracer = tracer

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	root.SetContext(ctx)

	cleanup := func() {
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
		activeTracer = trace.Nop
	}
	return cleanup, nil
}

// projectTraceLevel returns the [trace] level of the project file in effect,
// or "" when there is none. Project errors are reported by the command.
func projectTraceLevel(cmd *cobra.Command) string {
	project, err := loadProject(cmd)
	if err != nil || project == nil {
		return ""
	}
	return project.Config.Trace.Level
}

// dumpTraceOnPanic writes the ring buffer to stderr before re-panicking.
func dumpTraceOnPanic() {
	r := recover()
	if r == nil {
		return
	}
	if ring := trace.RingOf(activeTracer); ring != nil {
		fmt.Fprintln(os.Stderr, "trace: dumping ring buffer after panic")
		_ = ring.Dump(os.Stderr, trace.FormatText)
	}
	panic(r)
}

// loadProject loads the file named by --project, or the nullguard.toml found
// walking up from the working directory. It returns nil without a project.
func loadProject(cmd *cobra.Command) (*config.Project, error) {
	path := ""
	if f := cmd.Flags().Lookup("project"); f != nil {
		path = f.Value.String()
	}
	if path == "" {
		found, ok, err := config.FindProject(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		path = found
	}
	return config.LoadProject(path)
}
