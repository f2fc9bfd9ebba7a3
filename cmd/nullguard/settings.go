package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"nullguard/internal/config"
	"nullguard/internal/nullness"
)

// patchFlags are the command-line inputs of a pass.
type patchFlags struct {
	input     string
	output    string
	classpath []string
	config    string
	markers   []string
	// markersSet distinguishes an explicit empty --markers from its absence.
	markersSet bool
	diskCache  bool
	cacheDir   string
}

// patchSettings is a pass configuration after merging flags, environment
// and project file.
type patchSettings struct {
	input     string
	output    string
	classpath []string
	config    config.Configuration
	origin    config.Origin
	markers   []nullness.MarkerKind
	diskCache bool
	cacheDir  string
}

func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("classpath", "c", nil, "classpath entry (directory or jar), repeatable")
	cmd.Flags().String("config", "", "check configuration (preset, check name or publicApi=..:privateApi=..)")
	cmd.Flags().StringSlice("markers", nil, "annotation families to recognise (jspecify,cabe,jetbrains)")
	cmd.Flags().String("project", "", "project file (default: nullguard.toml found upwards from the working directory)")
}

func readPatchFlags(cmd *cobra.Command) (patchFlags, error) {
	var (
		pf  patchFlags
		err error
	)
	get := func(name string) string {
		if err != nil {
			return ""
		}
		if cmd.Flags().Lookup(name) == nil {
			return ""
		}
		var v string
		v, err = cmd.Flags().GetString(name)
		if err != nil {
			err = fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		return v
	}
	pf.input = get("input")
	pf.output = get("output")
	pf.config = get("config")
	pf.cacheDir = get("cache-dir")
	if err != nil {
		return pf, err
	}
	if pf.classpath, err = cmd.Flags().GetStringArray("classpath"); err != nil {
		return pf, fmt.Errorf("failed to get classpath flag: %w", err)
	}
	if pf.markers, err = cmd.Flags().GetStringSlice("markers"); err != nil {
		return pf, fmt.Errorf("failed to get markers flag: %w", err)
	}
	pf.markersSet = cmd.Flags().Changed("markers")
	if cmd.Flags().Lookup("disk-cache") != nil {
		if pf.diskCache, err = cmd.Flags().GetBool("disk-cache"); err != nil {
			return pf, fmt.Errorf("failed to get disk-cache flag: %w", err)
		}
	}
	return pf, nil
}

// loadSettings gathers flags, the environment (.env in the working
// directory included) and the project file.
func loadSettings(cmd *cobra.Command) (patchSettings, error) {
	pf, err := readPatchFlags(cmd)
	if err != nil {
		return patchSettings{}, err
	}
	env, err := config.LoadEnvironment(".")
	if err != nil {
		return patchSettings{}, err
	}
	project, err := loadProject(cmd)
	if err != nil {
		return patchSettings{}, err
	}
	return resolveSettings(pf, env, project)
}

// resolveSettings applies flag > environment > project file > default.
// Classpath entries accumulate in that order.
func resolveSettings(pf patchFlags, env config.Environment, project *config.Project) (patchSettings, error) {
	var inst config.InstrumentConfig
	var cache config.CacheConfig
	if project != nil {
		inst = project.Config.Instrument
		cache = project.Config.Cache
	}

	s := patchSettings{
		input:     firstNonEmpty(pf.input, inst.Input),
		output:    firstNonEmpty(pf.output, inst.Output),
		diskCache: pf.diskCache || cache.Disk,
		cacheDir:  firstNonEmpty(pf.cacheDir, cache.Dir),
	}
	s.classpath = append(s.classpath, pf.classpath...)
	s.classpath = append(s.classpath, env.Classpath...)
	s.classpath = append(s.classpath, inst.Classpath...)

	cfg, origin, err := config.Sources{Flag: pf.config, Env: env.Config, Project: inst.Config}.Resolve()
	if err != nil {
		return patchSettings{}, err
	}
	s.config, s.origin = cfg, origin

	markers := inst.Markers
	if pf.markersSet {
		markers = pf.markers
	}
	if s.markers, err = nullness.ParseKinds(markers); err != nil {
		return patchSettings{}, err
	}

	if s.diskCache && s.cacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return patchSettings{}, fmt.Errorf("no cache directory: %w", err)
		}
		s.cacheDir = filepath.Join(dir, "nullguard")
	}
	return s, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
