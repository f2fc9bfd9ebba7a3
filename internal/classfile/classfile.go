// Package classfile reads, edits and writes JVM class files.
//
// Parsing keeps every attribute as raw bytes so that an unmodified class is
// written back byte for byte. Structured views (Code, StackMapTable,
// annotations, ...) are decoded on demand and re-encoded by the caller.
package classfile

import (
	"errors"
	"fmt"
)

// Magic is the first word of every class file.
const Magic = 0xCAFEBABE

// Class-file major versions referenced by the instrumentation rules.
const (
	MajorJava5 = 49
	MajorJava6 = 50
)

// Access flags.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
	AccMandated     uint16 = 0x8000
)

var (
	// ErrTruncated reports input that ends before a structure is complete.
	ErrTruncated = errors.New("class file truncated")
	// ErrBadMagic reports input that does not start with 0xCAFEBABE.
	ErrBadMagic = errors.New("not a class file")
	// ErrMalformed reports structurally invalid content.
	ErrMalformed = errors.New("malformed class file")
	// ErrTooLarge reports a table or code array exceeding its format limit.
	ErrTooLarge = errors.New("class file limit exceeded")
	// ErrPoolFull reports a constant pool that cannot take another entry.
	ErrPoolFull = fmt.Errorf("%w: constant pool full", ErrTooLarge)
)

// Attribute is an attribute kept in its encoded form.
type Attribute struct {
	NameIndex uint16
	Info      []byte
}

// Member is a field or a method.
type Member struct {
	Access          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []*Attribute
}

// ClassFile is a parsed class file.
type ClassFile struct {
	Minor      uint16
	Major      uint16
	Pool       *Pool
	Access     uint16
	ThisClass  uint16
	SuperClass uint16
	Interfaces []uint16
	Fields     []*Member
	Methods    []*Member
	Attributes []*Attribute
}

// Name returns the internal name of the class (for example "com/example/Foo").
func (cf *ClassFile) Name() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperName returns the internal name of the superclass, or "" for
// java/lang/Object and module-info.
func (cf *ClassFile) SuperName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames resolves the direct superinterfaces.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		n, err := cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, nil
}

// Attribute returns the first class attribute called name.
func (cf *ClassFile) Attribute(name string) *Attribute {
	return FindAttribute(cf.Pool, cf.Attributes, name)
}

// Name resolves the member name.
func (m *Member) Name(p *Pool) (string, error) {
	return p.Utf8(m.NameIndex)
}

// Descriptor resolves the member descriptor.
func (m *Member) Descriptor(p *Pool) (string, error) {
	return p.Utf8(m.DescriptorIndex)
}

// Attribute returns the first member attribute called name.
func (m *Member) Attribute(p *Pool, name string) *Attribute {
	return FindAttribute(p, m.Attributes, name)
}

// Is reports whether all bits of flag are set.
func (m *Member) Is(flag uint16) bool {
	return m.Access&flag == flag
}

// FindAttribute returns the first attribute in attrs called name.
func FindAttribute(p *Pool, attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if n, err := p.Utf8(a.NameIndex); err == nil && n == name {
			return a
		}
	}
	return nil
}

// ReplaceAttribute swaps the first attribute named like repl, or appends repl.
func ReplaceAttribute(p *Pool, attrs []*Attribute, repl *Attribute) []*Attribute {
	name, err := p.Utf8(repl.NameIndex)
	if err != nil {
		return append(attrs, repl)
	}
	for i, a := range attrs {
		if n, err := p.Utf8(a.NameIndex); err == nil && n == name {
			attrs[i] = repl
			return attrs
		}
	}
	return append(attrs, repl)
}

// NewAttribute interns name and wraps info.
func NewAttribute(p *Pool, name string, info []byte) (*Attribute, error) {
	idx, err := p.AddUtf8(name)
	if err != nil {
		return nil, err
	}
	return &Attribute{NameIndex: idx, Info: info}, nil
}

// Method returns the first method with the given name and descriptor.
func (cf *ClassFile) Method(name, descriptor string) *Member {
	for _, m := range cf.Methods {
		n, err1 := m.Name(cf.Pool)
		d, err2 := m.Descriptor(cf.Pool)
		if err1 == nil && err2 == nil && n == name && d == descriptor {
			return m
		}
	}
	return nil
}

// Field returns the first field called name.
func (cf *ClassFile) Field(name string) *Member {
	for _, f := range cf.Fields {
		if n, err := f.Name(cf.Pool); err == nil && n == name {
			return f
		}
	}
	return nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
