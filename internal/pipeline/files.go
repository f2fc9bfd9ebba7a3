package pipeline

import (
	"path/filepath"
	"sort"
	"strings"
)

// NormalizeFiles turns files into slash-separated paths relative to baseDir
// when they live under it, drops duplicates and sorts the result.
func NormalizeFiles(files []string, baseDir string) []string {
	if len(files) == 0 {
		return files
	}
	normalized := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))

	base := strings.TrimSpace(baseDir)
	if base != "" {
		if abs, err := filepath.Abs(base); err == nil {
			base = abs
		}
	}

	for _, file := range files {
		if file == "" {
			continue
		}
		path := filepath.Clean(file)
		if base != "" {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
			if rel, err := filepath.Rel(base, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				path = rel
			}
		}
		path = filepath.ToSlash(path)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		normalized = append(normalized, path)
	}
	sort.Strings(normalized)
	return normalized
}

// Within reports whether path equals root or lies below it.
func Within(path, root string) bool {
	if strings.TrimSpace(root) == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absRoot = filepath.Clean(absRoot)
	absPath = filepath.Clean(absPath)
	return absPath == absRoot || strings.HasPrefix(absPath, absRoot+string(filepath.Separator))
}
