package classpath

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one root of the class path.
type Entry interface {
	// Path returns the location the entry was opened from.
	Path() string
	// Read returns the bytes of the class with the given internal name.
	// A missing class reports false without an error.
	Read(name string) ([]byte, bool, error)
	Close() error
}

// OpenEntry opens a class directory or a jar/zip archive.
func OpenEntry(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return &dirEntry{root: path}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		return openJar(path)
	}
	return nil, fmt.Errorf("%s: not a directory or archive", path)
}

type dirEntry struct {
	root string
}

func (e *dirEntry) Path() string { return e.root }

func (e *dirEntry) Read(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(name)+".class"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (e *dirEntry) Close() error { return nil }

type jarEntry struct {
	path  string
	zr    *zip.ReadCloser
	files map[string]*zip.File
}

func openJar(path string) (*jarEntry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		name, ok := strings.CutSuffix(f.Name, ".class")
		if !ok || f.FileInfo().IsDir() || strings.HasPrefix(name, "META-INF/") {
			continue
		}
		files[name] = f
	}
	return &jarEntry{path: path, zr: zr, files: files}, nil
}

func (e *jarEntry) Path() string { return e.path }

func (e *jarEntry) Read(name string) ([]byte, bool, error) {
	f, ok := e.files[name]
	if !ok {
		return nil, false, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false, fmt.Errorf("%s!%s: %w", e.path, f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("%s!%s: %w", e.path, f.Name, err)
	}
	return data, true, nil
}

func (e *jarEntry) Close() error { return e.zr.Close() }
