// Package model builds the descriptive graph of a class: its classification,
// every declared behavior and every parameter with its effective nullness.
package model

import (
	"strings"

	"nullguard/internal/classfile"
	"nullguard/internal/nullness"
)

// ClassDescriptor describes one class file. It is immutable once built.
type ClassDescriptor struct {
	Name  string `json:"name" yaml:"name"`
	Major uint16 `json:"major" yaml:"major"`
	// InnerName is the source name of a member or local class.
	InnerName string `json:"innerName,omitempty" yaml:"innerName,omitempty"`

	IsInterface bool `json:"interface,omitempty" yaml:"interface,omitempty"`
	IsEnum      bool `json:"enum,omitempty" yaml:"enum,omitempty"`
	IsRecord    bool `json:"record,omitempty" yaml:"record,omitempty"`
	IsDerived   bool `json:"derived,omitempty" yaml:"derived,omitempty"`
	IsInner     bool `json:"inner,omitempty" yaml:"inner,omitempty"`
	IsStatic    bool `json:"static,omitempty" yaml:"static,omitempty"`
	IsAnonymous bool `json:"anonymous,omitempty" yaml:"anonymous,omitempty"`
	IsLocal     bool `json:"local,omitempty" yaml:"local,omitempty"`
	IsPublicAPI bool `json:"publicApi,omitempty" yaml:"publicApi,omitempty"`

	// Nullness is the operator resolved from the class, its enclosing
	// classes, its package and its module.
	Nullness nullness.Operator `json:"nullness" yaml:"nullness"`

	// AssertionsFlagOwner names the class declaring the $assertionsDisabled
	// field consulted by assertion guards, or "" when none was found.
	AssertionsFlagOwner string `json:"assertionsFlagOwner,omitempty" yaml:"assertionsFlagOwner,omitempty"`

	Behaviors []*BehaviorDescriptor `json:"behaviors" yaml:"behaviors"`
}

// DottedName returns the class name in source form.
func (c *ClassDescriptor) DottedName() string {
	return classfile.DottedName(c.Name)
}

// SimpleName returns the source-level simple name. Anonymous classes keep
// their binary name without the package.
func (c *ClassDescriptor) SimpleName() string {
	if c.InnerName != "" {
		return c.InnerName
	}
	if i := strings.LastIndexByte(c.Name, '/'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// BehaviorDescriptor describes a method or constructor.
type BehaviorDescriptor struct {
	Name       string `json:"name" yaml:"name"`
	Descriptor string `json:"descriptor" yaml:"descriptor"`
	Signature  string `json:"signature" yaml:"signature"`

	IsConstructor                bool `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	IsCanonicalRecordConstructor bool `json:"canonicalRecordConstructor,omitempty" yaml:"canonicalRecordConstructor,omitempty"`
	IsRecordEquals               bool `json:"recordEquals,omitempty" yaml:"recordEquals,omitempty"`
	IsAbstract                   bool `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	IsStatic                     bool `json:"static,omitempty" yaml:"static,omitempty"`
	IsPublicAPI                  bool `json:"publicApi,omitempty" yaml:"publicApi,omitempty"`
	IsSynthetic                  bool `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	IsBridge                     bool `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	IsNative                     bool `json:"native,omitempty" yaml:"native,omitempty"`

	// HasLocalVariables is false when the body carries no LocalVariableTable.
	HasLocalVariables bool `json:"hasLocalVariables" yaml:"hasLocalVariables"`

	Nullness   nullness.Operator      `json:"nullness" yaml:"nullness"`
	Parameters []*ParameterDescriptor `json:"parameters,omitempty" yaml:"parameters,omitempty"`

	// Index is the position of the method in the class file's method table.
	Index int              `json:"-" yaml:"-"`
	Class *ClassDescriptor `json:"-" yaml:"-"`
}

// HasBody reports whether the behavior carries code.
func (b *BehaviorDescriptor) HasBody() bool {
	return !b.IsAbstract && !b.IsNative
}

// Key returns name+descriptor, unique within a class.
func (b *BehaviorDescriptor) Key() string {
	return b.Name + b.Descriptor
}

// ParameterDescriptor describes one parameter of a behavior.
type ParameterDescriptor struct {
	// Index is the position in the method descriptor, synthetic parameters included.
	Index int `json:"index" yaml:"index"`
	// Declared is the position among source-level parameters, or -1.
	Declared int `json:"declared" yaml:"declared"`
	// Slot is the local variable slot holding the argument on entry.
	Slot uint16 `json:"slot" yaml:"slot"`

	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	TypeName string `json:"typeName" yaml:"typeName"`

	Nullness    nullness.Operator `json:"nullness" yaml:"nullness"`
	IsSynthetic bool              `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	IsPrimitive bool              `json:"primitive,omitempty" yaml:"primitive,omitempty"`
}
