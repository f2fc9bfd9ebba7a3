package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nullguard/internal/classpath"
	"nullguard/internal/config"
	"nullguard/internal/diag"
	"nullguard/internal/diagfmt"
	"nullguard/internal/observ"
	"nullguard/internal/patch"
	"nullguard/internal/version"
)

var patchCmd = &cobra.Command{
	Use:   "patch -i <input> -o <output> [flags]",
	Short: "Inject null guards into every class of a folder",
	Long: `Read every class file below the input folder, inject parameter null checks
according to the check configuration and write the result to the output
folder. Resources are copied unchanged. The exit status is 1 when the
configuration or a folder is invalid or when any class failed.`,
	Args: cobra.NoArgs,
	RunE: runPatch,
}

func init() {
	patchCmd.Flags().StringP("input", "i", "", "folder holding the compiled classes")
	patchCmd.Flags().StringP("output", "o", "", "folder receiving the instrumented classes")
	addSettingsFlags(patchCmd)
	patchCmd.Flags().Bool("disk-cache", false, "persist class summaries between runs")
	patchCmd.Flags().String("cache-dir", "", "disk cache location (default: user cache dir)")
	patchCmd.Flags().String("format", "pretty", "output format (pretty|json|sarif)")
	patchCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	patchCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	patchCmd.Flags().Bool("verbose", false, "also print informational diagnostics")
}

// patchReport is the --format json document.
type patchReport struct {
	Input       string                    `json:"input"`
	Output      string                    `json:"output"`
	Config      string                    `json:"config"`
	Origin      config.Origin             `json:"configOrigin"`
	Result      *patch.Result             `json:"result"`
	Diagnostics diagfmt.DiagnosticsOutput `json:"diagnostics"`
	Timings     *observ.Report            `json:"timings,omitempty"`
}

func runPatch(cmd *cobra.Command, args []string) error {
	defer dumpTraceOnPanic()

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(format)
	switch format {
	case "pretty", "json", "sarif":
	default:
		return fmt.Errorf("unknown format %q (expected pretty|json|sarif)", format)
	}
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	showProgress, err := progressWanted(uiFlag, format, quiet, isTerminal(os.Stderr))
	if err != nil {
		return err
	}

	timer := observ.NewTimer()
	phase := timer.Begin("settings")
	settings, err := loadSettings(cmd)
	timer.End(phase, "")
	if err != nil {
		return err
	}
	if settings.input == "" || settings.output == "" {
		return fmt.Errorf("both an input (-i) and an output (-o) folder are required, on the command line or in [instrument]")
	}

	opts := patch.Options{
		Config:         settings.config,
		Markers:        settings.markers,
		Classpath:      settings.classpath,
		Version:        version.Version,
		MaxDiagnostics: maxDiagnostics,
	}
	if settings.diskCache {
		phase = timer.Begin("disk cache")
		disk, err := classpath.OpenDiskCache(settings.cacheDir)
		timer.End(phase, settings.cacheDir)
		if err != nil {
			return fmt.Errorf("failed to open disk cache: %w", err)
		}
		opts.Disk = disk
	}

	ctx := cmd.Context()
	phase = timer.Begin("patch")
	var res *patch.Result
	if showProgress {
		res, err = runPatchWithUI(ctx, "nullguard patch", settings.input, settings.output, opts)
	} else {
		res, err = patch.ProcessFolder(ctx, settings.input, settings.output, opts)
	}
	if err != nil {
		timer.End(phase, "aborted")
		return err
	}
	timer.End(phase, fmt.Sprintf("%d classes", len(res.Classes)))
	addStageTimings(timer, res.Timings)

	res.Diagnostics.Sort()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	switch format {
	case "json":
		report := patchReport{
			Input:       settings.input,
			Output:      settings.output,
			Config:      settings.config.String(),
			Origin:      settings.origin,
			Result:      res,
			Diagnostics: diagfmt.BuildDiagnosticsOutput(res.Diagnostics, diagfmt.JSONOpts{IncludeNotes: withNotes}),
		}
		if showTimings {
			r := timer.Report()
			report.Timings = &r
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "sarif":
		meta := diagfmt.SarifRunMeta{ToolName: "nullguard", ToolVersion: version.Version, InvocationArgs: os.Args[1:], BaseDir: settings.input}
		if err := diagfmt.Sarif(stdout, res.Diagnostics, meta); err != nil {
			return err
		}
	default:
		useColor, err := colorEnabled(cmd, os.Stderr)
		if err != nil {
			return err
		}
		minSeverity := diag.SevWarning
		if verbose {
			minSeverity = diag.SevInfo
		}
		if quiet {
			minSeverity = diag.SevError
		}
		diagfmt.Pretty(stderr, res.Diagnostics, diagfmt.PrettyOpts{
			Color:       useColor,
			BaseDir:     settings.input,
			ShowNotes:   withNotes,
			MinSeverity: uint8(minSeverity),
		})
		if !quiet {
			fmt.Fprintf(stdout, "%s: patched %d, unchanged %d, copied %d, failed %d (%s from %s)\n",
				settings.output, res.Patched, res.Unchanged, res.Copied, len(res.Failures),
				settings.config, settings.origin)
		}
		if showTimings {
			printTimings(stderr, timer)
		}
	}

	if !res.OK() {
		return &exitError{code: 1}
	}
	return nil
}
