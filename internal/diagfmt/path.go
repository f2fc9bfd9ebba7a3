package diagfmt

import (
	"path/filepath"
)

// formatPath renders a reported path (slash separated, relative to base)
// according to mode.
func formatPath(p, base string, mode PathMode) string {
	if p == "" {
		return ""
	}
	native := filepath.FromSlash(p)
	switch mode {
	case PathModeAbsolute:
		if filepath.IsAbs(native) || base == "" {
			return native
		}
		if abs, err := filepath.Abs(filepath.Join(base, native)); err == nil {
			return abs
		}
		return filepath.Join(base, native)
	case PathModeRelative:
		if !filepath.IsAbs(native) || base == "" {
			return p
		}
		if rel, err := filepath.Rel(base, native); err == nil {
			return filepath.ToSlash(rel)
		}
		return p
	case PathModeBasename:
		return filepath.Base(native)
	}
	return p
}
