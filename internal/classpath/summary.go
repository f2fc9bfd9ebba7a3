package classpath

import (
	"fmt"

	"nullguard/internal/classfile"
)

// ObjectClass is the root of every superclass chain.
const ObjectClass = "java/lang/Object"

// AssertionsFlag is the synthetic field javac emits for classes using assert.
const AssertionsFlag = "$assertionsDisabled"

// Summary is the part of a class the resolution context needs: naming,
// visibility, nesting and class-level annotations.
type Summary struct {
	Schema uint16

	Name  string
	Super string
	// Access holds the class access flags; for nested classes the flags from
	// the class's own InnerClasses row take priority.
	Access uint16
	Major  uint16

	Nested    bool
	Anonymous bool
	// SimpleName is the source-level name from the class's own InnerClasses
	// row; empty for top-level and anonymous classes.
	SimpleName string
	// Outer is the declaring class of a member class, or the class holding
	// the enclosing method of a local or anonymous class.
	Outer string
	// Members lists classes declared directly inside this one.
	Members []string

	// Annotations holds descriptors of class annotations, visible and invisible.
	Annotations []string

	HasAssertionsFlag bool

	// Origin is the index of the classpath entry the class was loaded from.
	Origin int `msgpack:"-"`
}

// summarySchema is bumped whenever the Summary layout changes.
const summarySchema uint16 = 2

var summarySalt = Sum([]byte(fmt.Sprintf("nullguard/summary/v%d", summarySchema)))

// IsPublic reports whether the class itself is declared public.
func (s *Summary) IsPublic() bool {
	return s.Access&classfile.AccPublic != 0
}

// Package returns the internal package name.
func (s *Summary) Package() string {
	return classfile.PackageOf(s.Name)
}

// Summarize extracts a Summary from a parsed class.
func Summarize(cf *classfile.ClassFile) (*Summary, error) {
	name, err := cf.Name()
	if err != nil {
		return nil, err
	}
	super, err := cf.SuperName()
	if err != nil {
		return nil, err
	}
	s := &Summary{
		Schema: summarySchema,
		Name:   name,
		Super:  super,
		Access: cf.Access,
		Major:  cf.Major,
	}

	if a := cf.Attribute(classfile.AttrInnerClasses); a != nil {
		rows, err := classfile.ParseInnerClasses(a.Info)
		if err != nil {
			return nil, fmt.Errorf("%s: InnerClasses: %w", name, err)
		}
		for _, row := range rows {
			inner, err := cf.Pool.ClassName(row.InnerClassInfo)
			if err != nil {
				return nil, err
			}
			outer := ""
			if row.OuterClassInfo != 0 {
				if outer, err = cf.Pool.ClassName(row.OuterClassInfo); err != nil {
					return nil, err
				}
			}
			switch {
			case inner == name:
				s.Nested = true
				s.Access = row.Access
				s.Anonymous = row.InnerName == 0
				if !s.Anonymous {
					if s.SimpleName, err = cf.Pool.Utf8(row.InnerName); err != nil {
						return nil, err
					}
				}
				if outer != "" {
					s.Outer = outer
				}
			case outer == name:
				s.Members = append(s.Members, inner)
			}
		}
	}
	if a := cf.Attribute(classfile.AttrEnclosingMethod); a != nil {
		em, err := classfile.ParseEnclosingMethod(a.Info)
		if err != nil {
			return nil, fmt.Errorf("%s: EnclosingMethod: %w", name, err)
		}
		if s.Outer, err = cf.Pool.ClassName(em.ClassIndex); err != nil {
			return nil, err
		}
		s.Nested = true
	}

	for _, attr := range []string{classfile.AttrRuntimeVisibleAnnotations, classfile.AttrRuntimeInvisibleAnnotations} {
		a := cf.Attribute(attr)
		if a == nil {
			continue
		}
		anns, err := classfile.ParseAnnotations(a.Info)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", name, attr, err)
		}
		for i := range anns {
			d, err := anns[i].Type(cf.Pool)
			if err != nil {
				return nil, err
			}
			s.Annotations = append(s.Annotations, d)
		}
	}

	if f := cf.Field(AssertionsFlag); f != nil && f.Is(classfile.AccStatic) {
		if d, err := f.Descriptor(cf.Pool); err == nil && d == "Z" {
			s.HasAssertionsFlag = true
		}
	}
	return s, nil
}
