package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ProjectFileName is the name of the project file searched for by the CLI.
const ProjectFileName = "nullguard.toml"

// Environment variables read by Environment.
const (
	EnvConfig    = "NULLGUARD_CONFIG"
	EnvClasspath = "NULLGUARD_CLASSPATH"
)

// Project is a loaded nullguard.toml. Paths are absolute.
type Project struct {
	Path   string
	Root   string
	Config ProjectConfig
}

// ProjectConfig mirrors the TOML layout.
type ProjectConfig struct {
	Instrument InstrumentConfig `toml:"instrument"`
	Cache      CacheConfig      `toml:"cache"`
	Trace      TraceConfig      `toml:"trace"`
}

// InstrumentConfig is the [instrument] table.
type InstrumentConfig struct {
	Config    string   `toml:"config"`
	Input     string   `toml:"input"`
	Output    string   `toml:"output"`
	Classpath []string `toml:"classpath"`
	Markers   []string `toml:"markers"`
}

// CacheConfig is the [cache] table.
type CacheConfig struct {
	Disk bool   `toml:"disk"`
	Dir  string `toml:"dir"`
}

// TraceConfig is the [trace] table.
type TraceConfig struct {
	Level string `toml:"level"`
}

// FindProject walks up from startDir looking for nullguard.toml.
func FindProject(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadProject decodes and validates a project file. Relative paths are
// resolved against the directory holding it.
func LoadProject(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	var cfg ProjectConfig
	meta, err := toml.DecodeFile(abs, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", abs, err)
	}
	if !meta.IsDefined("instrument") {
		return nil, fmt.Errorf("%s: missing [instrument]", abs)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", abs, strings.Join(keys, ", "))
	}
	if c := strings.TrimSpace(cfg.Instrument.Config); c != "" {
		if _, err := Parse(c); err != nil {
			return nil, fmt.Errorf("%s: [instrument].config: %w", abs, err)
		}
	}
	root := filepath.Dir(abs)
	cfg.Instrument.Input = resolvePath(root, cfg.Instrument.Input)
	cfg.Instrument.Output = resolvePath(root, cfg.Instrument.Output)
	for i, cp := range cfg.Instrument.Classpath {
		cfg.Instrument.Classpath[i] = resolvePath(root, cp)
	}
	cfg.Cache.Dir = resolvePath(root, cfg.Cache.Dir)
	return &Project{Path: abs, Root: root, Config: cfg}, nil
}

func resolvePath(root, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, filepath.FromSlash(p))
}

// ProjectTemplate is written by `nullguard init`.
const ProjectTemplate = `# nullguard project file
[instrument]
# standard | development | no-checks | <CHECK> | publicApi=<CHECK>:privateApi=<CHECK>[:returnValue=<CHECK>]
config = "standard"
input = "build/classes/java/main"
output = "build/classes/java/instrumented"
classpath = []
markers = ["jspecify", "cabe", "jetbrains"]

[cache]
disk = false
dir = ".nullguard/cache"

[trace]
level = "off"
`

// Environment holds overrides taken from the process environment.
type Environment struct {
	Config    string
	Classpath []string
}

// LoadEnvironment reads a .env file from dir when one exists (without
// overriding variables already set) and returns the nullguard overrides.
func LoadEnvironment(dir string) (Environment, error) {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Environment{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Environment{}, fmt.Errorf("failed to stat %q: %w", envFile, err)
	}
	env := Environment{Config: strings.TrimSpace(os.Getenv(EnvConfig))}
	for _, p := range filepath.SplitList(os.Getenv(EnvClasspath)) {
		if p = strings.TrimSpace(p); p != "" {
			env.Classpath = append(env.Classpath, p)
		}
	}
	return env, nil
}

// Origin names where a resolved configuration came from.
type Origin string

const (
	OriginFlag    Origin = "flag"
	OriginEnv     Origin = "env"
	OriginProject Origin = "project"
	OriginDefault Origin = "default"
)

// Sources are the candidate configuration strings in precedence order.
type Sources struct {
	Flag    string
	Env     string
	Project string
}

// Resolve parses the highest-precedence non-empty source:
// flag > environment > project file > standard preset.
func (s Sources) Resolve() (Configuration, Origin, error) {
	candidates := []struct {
		value  string
		origin Origin
	}{
		{s.Flag, OriginFlag},
		{s.Env, OriginEnv},
		{s.Project, OriginProject},
	}
	for _, c := range candidates {
		v := strings.TrimSpace(c.value)
		if v == "" {
			continue
		}
		cfg, err := Parse(v)
		if err != nil {
			return Configuration{}, c.origin, fmt.Errorf("%s: %w", c.origin, err)
		}
		return cfg, c.origin, nil
	}
	return Standard, OriginDefault, nil
}
