package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePresets(t *testing.T) {
	tests := []struct {
		in   string
		want Configuration
	}{
		{"standard", Configuration{ThrowNPE, Assert, NoCheck}},
		{"development", Configuration{AssertAlways, AssertAlways, AssertAlways}},
		{"no-checks", Configuration{NoCheck, NoCheck, NoCheck}},
		{"no-check", Configuration{NoCheck, NoCheck, NoCheck}},
		{"THROW_NPE", Configuration{ThrowNPE, ThrowNPE, ThrowNPE}},
		{"publicApi=THROW_NPE:privateApi=ASSERT", Configuration{ThrowNPE, Assert, NoCheck}},
		{"privateApi=ASSERT_ALWAYS:publicApi=NO_CHECK:returnValue=ASSERT", Configuration{NoCheck, AssertAlways, Assert}},
		{"publicApi=ASSERT", Configuration{Assert, NoCheck, NoCheck}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"Standard",
		"throw_npe",
		"FOO",
		"publicApi=FOO",
		"publicApi=ASSERT:publicApi=ASSERT",
		"publicApi=ASSERT:otherApi=ASSERT",
		"publicApi=ASSERT::privateApi=ASSERT",
		"publicApi",
		"publicApi=",
	}
	for _, s := range bad {
		_, err := Parse(s)
		require.Error(t, err, "input %q", s)
		require.True(t, errors.Is(err, ErrInvalidConfiguration), "input %q: %v", s, err)
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	for _, pub := range Checks {
		for _, priv := range Checks {
			for _, ret := range Checks {
				c := Configuration{PublicAPI: pub, PrivateAPI: priv, ReturnValue: ret}
				back, err := Parse(c.String())
				require.NoError(t, err)
				require.Equal(t, c, back)
			}
		}
	}
	require.Equal(t, "publicApi=THROW_NPE:privateApi=ASSERT:returnValue=NO_CHECK", Standard.String())
}

func TestConfigurationFor(t *testing.T) {
	c := MustParse("publicApi=THROW_NPE:privateApi=ASSERT")
	require.Equal(t, ThrowNPE, c.For(true))
	require.Equal(t, Assert, c.For(false))
	require.True(t, NoChecks.IsNoop())
	require.False(t, c.IsNoop())
}

func TestSourcesPrecedence(t *testing.T) {
	cfg, origin, err := Sources{Env: "development", Project: "no-checks"}.Resolve()
	require.NoError(t, err)
	require.Equal(t, OriginEnv, origin)
	require.Equal(t, Development, cfg)

	cfg, origin, err = Sources{Flag: "ASSERT", Env: "development"}.Resolve()
	require.NoError(t, err)
	require.Equal(t, OriginFlag, origin)
	require.Equal(t, Assert, cfg.PublicAPI)

	cfg, origin, err = Sources{}.Resolve()
	require.NoError(t, err)
	require.Equal(t, OriginDefault, origin)
	require.Equal(t, Standard, cfg)

	_, _, err = Sources{Project: "nonsense"}.Resolve()
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)
	require.NoError(t, os.WriteFile(path, []byte(ProjectTemplate), 0o600))

	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	found, ok, err := FindProject(sub)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, path, found)

	p, err := LoadProject(found)
	require.NoError(t, err)
	require.Equal(t, "standard", p.Config.Instrument.Config)
	require.Equal(t, filepath.Join(dir, "build", "classes", "java", "main"), p.Config.Instrument.Input)
	require.Equal(t, []string{"jspecify", "cabe", "jetbrains"}, p.Config.Instrument.Markers)
	require.Equal(t, "off", p.Config.Trace.Level)
}

func TestLoadProjectRejects(t *testing.T) {
	cases := map[string]string{
		"missing instrument": "[cache]\ndisk = true\n",
		"unknown key":        "[instrument]\nconfig = \"standard\"\nbogus = 1\n",
		"bad config":         "[instrument]\nconfig = \"sometimes\"\n",
		"bad toml":           "[instrument\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ProjectFileName)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadProject(path)
			require.Error(t, err)
		})
	}
}

func TestLoadEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvClasspath, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(EnvConfig+"=development\n"+EnvClasspath+"=/x/a.jar"+string(os.PathListSeparator)+"/x/b\n"), 0o600))

	// godotenv does not override variables that are already set, even empty.
	os.Unsetenv(EnvConfig)
	os.Unsetenv(EnvClasspath)

	env, err := LoadEnvironment(dir)
	require.NoError(t, err)
	require.Equal(t, "development", env.Config)
	require.Equal(t, []string{"/x/a.jar", "/x/b"}, env.Classpath)
}
