package classfile

import "encoding/binary"

// Builder assembles class files in memory. It is used to synthesize
// fixtures and stub classes; the first error is sticky and reported by Build.
type Builder struct {
	cf      *ClassFile
	methods []*MethodBuilder
	bsms    []BootstrapMethod
	err     error
}

// MethodBuilder adds attributes to one method of a Builder.
type MethodBuilder struct {
	b          *Builder
	m          *Member
	code       *Code
	locals     []LocalVariable
	lines      []LineNumber
	frames     []Frame
	hasFrames  bool
	codeExtras []*Attribute
}

// NewBuilder starts a class named name (internal form). super may be "" for
// module-info.
func NewBuilder(name, super string, access uint16) *Builder {
	b := &Builder{cf: &ClassFile{Major: 61, Pool: NewPool(), Access: access}}
	b.cf.ThisClass = b.class(name)
	if super != "" {
		b.cf.SuperClass = b.class(super)
	}
	return b
}

// Pool exposes the pool under construction.
func (b *Builder) Pool() *Pool {
	return b.cf.Pool
}

func (b *Builder) keep(idx uint16, err error) uint16 {
	if err != nil && b.err == nil {
		b.err = err
	}
	return idx
}

func (b *Builder) utf8(s string) uint16  { return b.keep(b.cf.Pool.AddUtf8(s)) }
func (b *Builder) class(s string) uint16 { return b.keep(b.cf.Pool.AddClass(s)) }

// Version sets the major version.
func (b *Builder) Version(major uint16) *Builder {
	b.cf.Major = major
	return b
}

// Interfaces adds direct superinterfaces.
func (b *Builder) Interfaces(names ...string) *Builder {
	for _, n := range names {
		b.cf.Interfaces = append(b.cf.Interfaces, b.class(n))
	}
	return b
}

// Field adds a field.
func (b *Builder) Field(access uint16, name, descriptor string) *Builder {
	b.cf.Fields = append(b.cf.Fields, &Member{Access: access, NameIndex: b.utf8(name), DescriptorIndex: b.utf8(descriptor)})
	return b
}

// Attribute adds a raw class attribute.
func (b *Builder) Attribute(name string, info []byte) *Builder {
	b.cf.Attributes = append(b.cf.Attributes, &Attribute{NameIndex: b.utf8(name), Info: info})
	return b
}

// Annotate adds class annotations with the given descriptors.
func (b *Builder) Annotate(visible bool, descriptors ...string) *Builder {
	b.cf.Attributes = b.annotations(b.cf.Attributes, visible, descriptors)
	return b
}

func (b *Builder) annotations(attrs []*Attribute, visible bool, descriptors []string) []*Attribute {
	name := AttrRuntimeInvisibleAnnotations
	if visible {
		name = AttrRuntimeVisibleAnnotations
	}
	var anns []Annotation
	if existing := FindAttribute(b.cf.Pool, attrs, name); existing != nil {
		parsed, err := ParseAnnotations(existing.Info)
		b.keep(0, err)
		anns = parsed
	}
	for _, d := range descriptors {
		anns = append(anns, Annotation{TypeIndex: b.utf8(d)})
	}
	info, err := EncodeAnnotations(anns)
	b.keep(0, err)
	return ReplaceAttribute(b.cf.Pool, attrs, &Attribute{NameIndex: b.utf8(name), Info: info})
}

// InnerClass adds an InnerClasses row. outer and simple may be "" for local
// and anonymous classes.
func (b *Builder) InnerClass(inner, outer, simple string, access uint16) *Builder {
	var rows []InnerClass
	if a := b.cf.Attribute(AttrInnerClasses); a != nil {
		parsed, err := ParseInnerClasses(a.Info)
		b.keep(0, err)
		rows = parsed
	}
	row := InnerClass{InnerClassInfo: b.class(inner), Access: access}
	if outer != "" {
		row.OuterClassInfo = b.class(outer)
	}
	if simple != "" {
		row.InnerName = b.utf8(simple)
	}
	rows = append(rows, row)
	info, err := EncodeInnerClasses(rows)
	b.keep(0, err)
	b.cf.Attributes = ReplaceAttribute(b.cf.Pool, b.cf.Attributes, &Attribute{NameIndex: b.utf8(AttrInnerClasses), Info: info})
	return b
}

// EnclosingMethod marks the class as local or anonymous inside owner.
func (b *Builder) EnclosingMethod(owner string) *Builder {
	info := binary.BigEndian.AppendUint16(nil, b.class(owner))
	info = binary.BigEndian.AppendUint16(info, 0)
	return b.Attribute(AttrEnclosingMethod, info)
}

// RecordComponents adds a Record attribute; components are name/descriptor pairs.
func (b *Builder) RecordComponents(components ...[2]string) *Builder {
	rcs := make([]RecordComponent, 0, len(components))
	for _, c := range components {
		rcs = append(rcs, RecordComponent{NameIndex: b.utf8(c[0]), DescriptorIndex: b.utf8(c[1])})
	}
	info, err := EncodeRecord(rcs)
	b.keep(0, err)
	return b.Attribute(AttrRecord, info)
}

// InvokeDynamic registers a bootstrap method (a static method handle) and
// returns the InvokeDynamic pool index for a call site using it.
func (b *Builder) InvokeDynamic(bsmOwner, bsmName, bsmDescriptor, name, descriptor string) uint16 {
	ref := b.keep(b.cf.Pool.AddMethodref(bsmOwner, bsmName, bsmDescriptor))
	handle := b.keep(b.cf.Pool.AddMethodHandle(6, ref))
	b.bsms = append(b.bsms, BootstrapMethod{MethodRef: handle})
	return b.keep(b.cf.Pool.AddInvokeDynamic(uint16(len(b.bsms)-1), name, descriptor)) //nolint:gosec // fixture sized
}

// Method adds a method and returns its builder.
func (b *Builder) Method(access uint16, name, descriptor string) *MethodBuilder {
	m := &Member{Access: access, NameIndex: b.utf8(name), DescriptorIndex: b.utf8(descriptor)}
	b.cf.Methods = append(b.cf.Methods, m)
	mb := &MethodBuilder{b: b, m: m}
	b.methods = append(b.methods, mb)
	return mb
}

// Code sets the method body.
func (mb *MethodBuilder) Code(maxStack, maxLocals uint16, bytecode ...byte) *MethodBuilder {
	mb.code = &Code{MaxStack: maxStack, MaxLocals: maxLocals, Bytecode: bytecode}
	return mb
}

// Exception adds an exception table row.
func (mb *MethodBuilder) Exception(e ExceptionEntry) *MethodBuilder {
	if mb.code != nil {
		mb.code.Exceptions = append(mb.code.Exceptions, e)
	}
	return mb
}

// Local adds a LocalVariableTable row spanning the whole body.
func (mb *MethodBuilder) Local(name, descriptor string, slot uint16) *MethodBuilder {
	length := 0
	if mb.code != nil {
		length = len(mb.code.Bytecode)
	}
	return mb.LocalRange(name, descriptor, slot, 0, uint16(length)) //nolint:gosec // fixture sized
}

// LocalRange adds a LocalVariableTable row.
func (mb *MethodBuilder) LocalRange(name, descriptor string, slot, start, length uint16) *MethodBuilder {
	mb.locals = append(mb.locals, LocalVariable{
		StartPC: start, Length: length,
		NameIndex: mb.b.utf8(name), DescriptorIndex: mb.b.utf8(descriptor), Slot: slot,
	})
	return mb
}

// Lines adds LineNumberTable rows.
func (mb *MethodBuilder) Lines(rows ...LineNumber) *MethodBuilder {
	mb.lines = append(mb.lines, rows...)
	return mb
}

// Frames sets the StackMapTable.
func (mb *MethodBuilder) Frames(frames ...Frame) *MethodBuilder {
	mb.frames = append(mb.frames, frames...)
	mb.hasFrames = true
	return mb
}

// CodeAttribute adds a raw sub-attribute to the Code attribute.
func (mb *MethodBuilder) CodeAttribute(name string, info []byte) *MethodBuilder {
	mb.codeExtras = append(mb.codeExtras, &Attribute{NameIndex: mb.b.utf8(name), Info: info})
	return mb
}

// Annotate adds method annotations.
func (mb *MethodBuilder) Annotate(visible bool, descriptors ...string) *MethodBuilder {
	mb.m.Attributes = mb.b.annotations(mb.m.Attributes, visible, descriptors)
	return mb
}

// ParameterAnnotations sets per-parameter annotations; params[i] lists the
// descriptors on the i-th annotated parameter.
func (mb *MethodBuilder) ParameterAnnotations(visible bool, params ...[]string) *MethodBuilder {
	name := AttrRuntimeInvisibleParameterAnnotations
	if visible {
		name = AttrRuntimeVisibleParameterAnnotations
	}
	table := make([][]Annotation, len(params))
	for i, descs := range params {
		for _, d := range descs {
			table[i] = append(table[i], Annotation{TypeIndex: mb.b.utf8(d)})
		}
	}
	info, err := EncodeParameterAnnotations(table)
	mb.b.keep(0, err)
	mb.m.Attributes = append(mb.m.Attributes, &Attribute{NameIndex: mb.b.utf8(name), Info: info})
	return mb
}

// ParameterTypeAnnotation adds a formal_parameter type annotation.
func (mb *MethodBuilder) ParameterTypeAnnotation(visible bool, index uint8, descriptor string) *MethodBuilder {
	name := AttrRuntimeInvisibleTypeAnnotations
	if visible {
		name = AttrRuntimeVisibleTypeAnnotations
	}
	var anns []TypeAnnotation
	if a := FindAttribute(mb.b.cf.Pool, mb.m.Attributes, name); a != nil {
		parsed, err := ParseTypeAnnotations(a.Info)
		mb.b.keep(0, err)
		anns = parsed
	}
	anns = append(anns, TypeAnnotation{
		TargetType: TargetFormalParameter,
		Index:      index,
		Annotation: Annotation{TypeIndex: mb.b.utf8(descriptor)},
	})
	info, err := EncodeTypeAnnotations(anns)
	mb.b.keep(0, err)
	mb.m.Attributes = ReplaceAttribute(mb.b.cf.Pool, mb.m.Attributes, &Attribute{NameIndex: mb.b.utf8(name), Info: info})
	return mb
}

// Parameters adds a MethodParameters attribute. An empty name is encoded
// as an unnamed parameter.
func (mb *MethodBuilder) Parameters(params ...MethodParameterSpec) *MethodBuilder {
	rows := make([]MethodParameter, 0, len(params))
	for _, p := range params {
		row := MethodParameter{Access: p.Access}
		if p.Name != "" {
			row.NameIndex = mb.b.utf8(p.Name)
		}
		rows = append(rows, row)
	}
	info, err := EncodeMethodParameters(rows)
	mb.b.keep(0, err)
	mb.m.Attributes = append(mb.m.Attributes, &Attribute{NameIndex: mb.b.utf8(AttrMethodParameters), Info: info})
	return mb
}

// MethodParameterSpec names one MethodParameters entry.
type MethodParameterSpec struct {
	Name   string
	Access uint16
}

// Class returns the owning builder.
func (mb *MethodBuilder) Class() *Builder {
	return mb.b
}

func (mb *MethodBuilder) finish() {
	if mb.code == nil {
		return
	}
	c := *mb.code
	c.Attributes = nil
	if len(mb.lines) > 0 {
		info, err := EncodeLineNumberTable(mb.lines)
		mb.b.keep(0, err)
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: mb.b.utf8(AttrLineNumberTable), Info: info})
	}
	if len(mb.locals) > 0 {
		info, err := EncodeLocalVariableTable(mb.locals)
		mb.b.keep(0, err)
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: mb.b.utf8(AttrLocalVariableTable), Info: info})
	}
	if mb.hasFrames {
		info, err := EncodeStackMapTable(mb.frames)
		mb.b.keep(0, err)
		c.Attributes = append(c.Attributes, &Attribute{NameIndex: mb.b.utf8(AttrStackMapTable), Info: info})
	}
	c.Attributes = append(c.Attributes, mb.codeExtras...)
	info, err := c.Encode()
	mb.b.keep(0, err)
	mb.m.Attributes = ReplaceAttribute(mb.b.cf.Pool, mb.m.Attributes, &Attribute{NameIndex: mb.b.utf8(AttrCode), Info: info})
}

// Build finalizes and returns the class file.
func (b *Builder) Build() (*ClassFile, error) {
	for _, mb := range b.methods {
		mb.finish()
	}
	if len(b.bsms) > 0 {
		info, err := EncodeBootstrapMethods(b.bsms)
		b.keep(0, err)
		b.cf.Attributes = ReplaceAttribute(b.cf.Pool, b.cf.Attributes, &Attribute{NameIndex: b.utf8(AttrBootstrapMethods), Info: info})
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.cf, nil
}

// Bytes finalizes and encodes the class file.
func (b *Builder) Bytes() ([]byte, error) {
	cf, err := b.Build()
	if err != nil {
		return nil, err
	}
	return cf.Bytes()
}
