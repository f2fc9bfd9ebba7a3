package patch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"nullguard/internal/classpath"
	"nullguard/internal/pipeline"
)

const classSuffix = ".class"

var identifier = regexp.MustCompile(`^[\p{L}_$][\p{L}\p{N}_$]*$`)

// validBinaryName reports whether every segment of an internal name is a
// Java identifier.
func validBinaryName(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if !identifier.MatchString(seg) {
			return false
		}
	}
	return true
}

// isMetadataUnit reports module-info and package-info class files.
func isMetadataUnit(rel string) bool {
	base := strings.TrimSuffix(filepath.Base(rel), classSuffix)
	return base == classpath.ModuleInfo || base == classpath.PackageInfo
}

// checkDir returns a *FolderError unless dir is an existing directory.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &FolderError{Path: dir, Err: ErrNotDirectory}
	case err != nil:
		return &FolderError{Path: dir, Err: err}
	case !info.IsDir():
		return &FolderError{Path: dir, Err: ErrNotDirectory}
	}
	return nil
}

// walk lists regular files under input in lexical order as slash paths
// relative to input. skip is left out when it lies inside input.
func walk(input, skip string) ([]string, error) {
	skipNested := skip != "" && pipeline.Within(skip, input) && !pipeline.Within(input, skip)
	var files []string
	err := filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipNested && path != input && pipeline.Within(path, skip) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(input, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &FolderError{Path: input, Err: err}
	}
	return files, nil
}

// writeFile stores data at path through a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	return replace(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// copyFile streams src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return replace(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func replace(path string, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".nullguard-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if err := fill(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
