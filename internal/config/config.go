// Package config holds the check configuration of a patch pass: which guard
// is injected for public-API and private-API behaviors, plus the strategy
// recorded for return values.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is wrapped by every configuration parse failure.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Check selects how a non-null parameter is guarded.
type Check uint8

const (
	// NoCheck emits nothing.
	NoCheck Check = iota
	// Assert emits a guard gated by the class's assertion status.
	Assert
	// ThrowNPE throws NullPointerException unconditionally.
	ThrowNPE
	// AssertAlways throws AssertionError regardless of assertion status.
	AssertAlways
)

// Checks lists all strategies.
var Checks = [...]Check{NoCheck, Assert, ThrowNPE, AssertAlways}

func (c Check) String() string {
	switch c {
	case NoCheck:
		return "NO_CHECK"
	case Assert:
		return "ASSERT"
	case ThrowNPE:
		return "THROW_NPE"
	case AssertAlways:
		return "ASSERT_ALWAYS"
	}
	return fmt.Sprintf("Check(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Check) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Check) UnmarshalText(text []byte) error {
	v, err := ParseCheck(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCheck parses a check name. Names are case-sensitive.
func ParseCheck(s string) (Check, error) {
	for _, c := range Checks {
		if s == c.String() {
			return c, nil
		}
	}
	return NoCheck, &Error{Input: s, Reason: unknownCheck(s)}
}

func unknownCheck(s string) string {
	return "unknown check " + quote(s) + " (expected NO_CHECK|ASSERT|THROW_NPE|ASSERT_ALWAYS)"
}

// Configuration selects a check per API tier.
type Configuration struct {
	PublicAPI   Check `json:"publicApi" yaml:"publicApi" toml:"publicApi"`
	PrivateAPI  Check `json:"privateApi" yaml:"privateApi" toml:"privateApi"`
	ReturnValue Check `json:"returnValue" yaml:"returnValue" toml:"returnValue"`
}

// Presets.
var (
	Standard    = Configuration{PublicAPI: ThrowNPE, PrivateAPI: Assert, ReturnValue: NoCheck}
	Development = Configuration{PublicAPI: AssertAlways, PrivateAPI: AssertAlways, ReturnValue: AssertAlways}
	NoChecks    = Configuration{PublicAPI: NoCheck, PrivateAPI: NoCheck, ReturnValue: NoCheck}
)

var presets = map[string]Configuration{
	"standard":    Standard,
	"development": Development,
	"no-checks":   NoChecks,
	"no-check":    NoChecks,
}

// PresetNames lists the accepted preset keywords.
func PresetNames() []string {
	return []string{"standard", "development", "no-checks", "no-check"}
}

// For returns the check for a behavior of the given visibility.
func (c Configuration) For(publicAPI bool) Check {
	if publicAPI {
		return c.PublicAPI
	}
	return c.PrivateAPI
}

// IsNoop reports whether no parameter guard can ever be emitted.
func (c Configuration) IsNoop() bool {
	return c.PublicAPI == NoCheck && c.PrivateAPI == NoCheck
}

// String returns the canonical form accepted by Parse.
func (c Configuration) String() string {
	return "publicApi=" + c.PublicAPI.String() +
		":privateApi=" + c.PrivateAPI.String() +
		":returnValue=" + c.ReturnValue.String()
}

// MarshalText implements encoding.TextMarshaler.
func (c Configuration) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Configuration) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

const (
	keyPublicAPI   = "publicApi"
	keyPrivateAPI  = "privateApi"
	keyReturnValue = "returnValue"
)

// Parse accepts a preset keyword, a single check name applied to every tier,
// or "publicApi=X:privateApi=Y[:returnValue=Z]" with keys in any order.
// Keys left out default to NO_CHECK.
func Parse(s string) (Configuration, error) {
	if c, ok := presets[s]; ok {
		return c, nil
	}
	if s == "" {
		return Configuration{}, &Error{Input: s, Reason: "empty configuration string"}
	}
	if !strings.ContainsAny(s, "=:") {
		c, err := ParseCheck(s)
		if err != nil {
			return Configuration{}, &Error{Input: s, Reason: "neither a preset nor a check name"}
		}
		return Configuration{PublicAPI: c, PrivateAPI: c, ReturnValue: c}, nil
	}

	var cfg Configuration
	seen := make(map[string]bool, 3)
	for _, part := range strings.Split(s, ":") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" || value == "" {
			return Configuration{}, &Error{Input: s, Reason: "malformed segment " + quote(part)}
		}
		if seen[key] {
			return Configuration{}, &Error{Input: s, Reason: "duplicate declaration for " + key}
		}
		seen[key] = true
		check, err := ParseCheck(value)
		if err != nil {
			return Configuration{}, &Error{Input: s, Reason: unknownCheck(value)}
		}
		switch key {
		case keyPublicAPI:
			cfg.PublicAPI = check
		case keyPrivateAPI:
			cfg.PrivateAPI = check
		case keyReturnValue:
			cfg.ReturnValue = check
		default:
			return Configuration{}, &Error{Input: s, Reason: "unknown key " + quote(key)}
		}
	}
	return cfg, nil
}

// MustParse is Parse for constant strings.
func MustParse(s string) Configuration {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Error reports an unparseable configuration string.
type Error struct {
	Input  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration string %s: %s", quote(e.Input), e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfiguration) hold.
func (e *Error) Unwrap() error {
	return ErrInvalidConfiguration
}

func quote(s string) string {
	return "'" + s + "'"
}
