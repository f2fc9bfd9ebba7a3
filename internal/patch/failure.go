package patch

import (
	"errors"
	"fmt"

	"nullguard/internal/diag"
)

// ErrNotDirectory is returned when the input folder is missing or is a file.
var ErrNotDirectory = errors.New("not a directory")

// FolderError aborts a whole pass.
type FolderError struct {
	Path string
	Err  error
}

func (e *FolderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FolderError) Unwrap() error {
	return e.Err
}

// FailureKind classifies a per-class failure.
type FailureKind uint8

const (
	// FailureConflict is a scope annotated both nullable and non-null.
	FailureConflict FailureKind = iota + 1
	// FailureCodegen is a prologue that could not be injected or encoded.
	FailureCodegen
	// FailureIO is a read or write error on one file.
	FailureIO
)

func (k FailureKind) String() string {
	switch k {
	case FailureConflict:
		return "conflict"
	case FailureCodegen:
		return "codegen"
	case FailureIO:
		return "io"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Failure is a class that was not written. The pass goes on after one.
type Failure struct {
	Kind      FailureKind `json:"kind" yaml:"kind"`
	Path      string      `json:"path" yaml:"path"`
	Class     string      `json:"class,omitempty" yaml:"class,omitempty"`
	Behavior  string      `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Parameter string      `json:"parameter,omitempty" yaml:"parameter,omitempty"`
	Err       error       `json:"-" yaml:"-"`
}

// Location identifies the failing element for diagnostics.
func (f *Failure) Location() diag.Location {
	return diag.Location{Path: f.Path, Class: f.Class, Behavior: f.Behavior, Parameter: f.Parameter}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure at %s: %v", f.Kind, f.Location(), f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
