package model

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"nullguard/internal/classfile"
	"nullguard/internal/diag"
	"nullguard/internal/nullness"
	"nullguard/internal/trace"
)

// syntheticNames matches local variable names javac gives to captured
// outer instances and captured locals.
var syntheticNames = regexp.MustCompile(`^(this(\$\d+)?|val\$.+)$`)

// outerInstanceName matches the captured outer instance of an inner class.
var outerInstanceName = regexp.MustCompile(`^this\$\d+$`)

// behavior describes one method. Static initializers are not behaviors.
func (b *Builder) behavior(ctx context.Context, cf *classfile.ClassFile, c *ClassDescriptor, m *classfile.Member, index int, components []string, loc diag.Location) (*BehaviorDescriptor, error) {
	name, err := m.Name(cf.Pool)
	if err != nil {
		return nil, err
	}
	if name == staticInitializerName {
		return nil, nil
	}
	desc, err := m.Descriptor(cf.Pool)
	if err != nil {
		return nil, err
	}
	mt, err := classfile.ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}

	bd := &BehaviorDescriptor{
		Name:          name,
		Descriptor:    desc,
		IsConstructor: name == constructorName,
		IsAbstract:    m.Is(classfile.AccAbstract),
		IsStatic:      m.Is(classfile.AccStatic),
		IsSynthetic:   m.Is(classfile.AccSynthetic),
		IsBridge:      m.Is(classfile.AccBridge),
		IsNative:      m.Is(classfile.AccNative),
		Index:         index,
		Class:         c,
	}
	bd.IsPublicAPI = c.IsPublicAPI && m.Is(classfile.AccPublic)
	bd.Signature = signature(c, name, mt)
	loc.Behavior = bd.DisplayName()

	if c.IsRecord && bd.IsConstructor {
		bd.IsCanonicalRecordConstructor = isCanonicalConstructor(mt.Params, components)
	}
	if c.IsRecord && name == equalsName && desc == equalsDescriptor && !bd.IsStatic {
		if bd.IsRecordEquals, err = isObjectMethodsEquals(cf, m); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Name, name, err)
		}
	}

	mm, err := b.scopes.Method(cf.Pool, m)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, name, err)
	}
	methodOwner := c.DottedName() + "." + bd.DisplayName()
	methodScope := func() (nullness.Operator, error) {
		return mm.Operator(nullness.LevelMethod, methodOwner)
	}
	if bd.Nullness, err = nullness.Resolve(methodScope, nullness.Fixed(c.Nullness)); err != nil {
		return nil, err
	}

	locals, hasLocals, err := localVariables(cf, m)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, name, err)
	}
	bd.HasLocalVariables = hasLocals
	mp, err := methodParameters(cf, m, len(mt.Params))
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, name, err)
	}

	firstLocal := ""
	if first, ok := classfile.LocalAt(locals, 1); ok && !bd.IsStatic {
		if firstLocal, err = cf.Pool.Utf8(first.NameIndex); err != nil {
			return nil, err
		}
	}
	lead := b.leadingSynthetic(c, bd, mt.Params, mp, firstLocal)
	pms, err := b.scopes.Parameters(cf.Pool, m)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, name, err)
	}
	offset := b.annotationOffset(c, bd, len(mt.Params), pms.Count, lead, loc)
	// local and anonymous class constructors append captured variables
	// after the declared parameters; annotation tables stop before them
	captured := len(mt.Params)
	if bd.IsConstructor && (c.IsLocal || c.IsAnonymous) && pms.Count > 0 && offset == lead {
		captured = min(captured, lead+pms.Count)
	}

	slot := uint16(1)
	if bd.IsStatic {
		slot = 0
	}
	declared := 0
	for i, t := range mt.Params {
		p := &ParameterDescriptor{
			Index:       i,
			Declared:    -1,
			Slot:        slot,
			Type:        t,
			TypeName:    classfile.JavaName(t),
			IsPrimitive: classfile.IsPrimitive(t),
		}
		slot += uint16(classfile.SlotSize(t)) //nolint:gosec // 1 or 2
		local, hasLocal := classfile.LocalAt(locals, p.Slot)
		localName := ""
		if hasLocal {
			if localName, err = cf.Pool.Utf8(local.NameIndex); err != nil {
				return nil, err
			}
		}

		switch {
		case i < lead, i >= captured:
			p.IsSynthetic = true
		case mp != nil && mp[i].Access&(classfile.AccSynthetic|classfile.AccMandated) != 0 && !bd.IsCanonicalRecordConstructor:
			p.IsSynthetic = true
		case syntheticNames.MatchString(localName):
			p.IsSynthetic = true
		}

		switch {
		case mp != nil && mp[i].NameIndex != 0:
			if p.Name, err = cf.Pool.Utf8(mp[i].NameIndex); err != nil {
				return nil, err
			}
		case localName != "":
			p.Name = localName
		case p.IsSynthetic:
			p.Name = fmt.Sprintf("synthetic#%d", i+1)
		}

		if p.IsSynthetic {
			p.Nullness = nullness.NoChange
			bd.Parameters = append(bd.Parameters, p)
			continue
		}
		p.Declared = declared
		declared++
		if p.Name == "" {
			p.Name = fmt.Sprintf("arg#%d", p.Declared+1)
		}

		var markers nullness.Markers
		if j := i - offset; j >= 0 {
			markers = pms.Declaration(j)
		}
		// type annotations are indexed by source position
		markers = markers.Merge(pms.Typed(p.Declared))
		paramOwner := methodOwner + " parameter " + p.Name
		paramScope := func() (nullness.Operator, error) {
			return markers.Operator(nullness.LevelParameter, paramOwner)
		}
		if p.Nullness, err = nullness.Resolve(paramScope, nullness.Fixed(bd.Nullness)); err != nil {
			return nil, err
		}
		bd.Parameters = append(bd.Parameters, p)
	}

	trace.Point(ctx, trace.ScopeBehavior, "behavior", fmt.Sprintf("%s params=%d lead=%d offset=%d", bd.DisplayName(), len(bd.Parameters), lead, offset))
	return bd, nil
}

// leadingSynthetic counts descriptor parameters the compiler prepends: the
// name and ordinal of enum constructors and the outer instance of inner
// class constructors. firstLocal is the LocalVariableTable name of slot 1.
// A local class declared in a static context has no outer instance, so the
// parameter type alone is consulted only when no parameter names exist.
func (b *Builder) leadingSynthetic(c *ClassDescriptor, bd *BehaviorDescriptor, params []string, mp []classfile.MethodParameter, firstLocal string) int {
	if !bd.IsConstructor {
		return 0
	}
	if c.IsEnum && len(params) >= 2 && params[0] == "Ljava/lang/String;" && params[1] == "I" {
		return 2
	}
	if c.IsInner && !c.IsStatic && len(params) > 0 {
		switch {
		case mp != nil:
			if mp[0].Access&(classfile.AccSynthetic|classfile.AccMandated) != 0 {
				return 1
			}
			return 0
		case firstLocal != "":
			if outerInstanceName.MatchString(firstLocal) {
				return 1
			}
			return 0
		}
		if outer := classfile.InternalName(params[0]); outer != "" && outer == b.outerOf(c) {
			return 1
		}
	}
	return 0
}

func (b *Builder) outerOf(c *ClassDescriptor) string {
	if s, ok, err := b.cp.Lookup(c.Name); err == nil && ok {
		return s.Outer
	}
	if i := strings.LastIndexByte(c.Name, '$'); i > 0 {
		return c.Name[:i]
	}
	return ""
}

// annotationOffset maps descriptor positions to parameter annotation table
// positions: table index = descriptor index - offset.
func (b *Builder) annotationOffset(c *ClassDescriptor, bd *BehaviorDescriptor, descriptorCount, annotatedCount, lead int, loc diag.Location) int {
	if annotatedCount < 0 || annotatedCount == descriptorCount {
		return 0
	}
	if c.IsEnum && bd.IsConstructor {
		if skew, ok := enumConstructorSkew(c.Major, descriptorCount, annotatedCount); ok {
			return skew
		}
	}
	if annotatedCount <= descriptorCount-lead {
		// tables start at the first declared parameter; trailing entries
		// are captured variables of local classes
		return lead
	}
	diag.ReportWarning(b.rep, diag.StrParameterSkew, loc,
		fmt.Sprintf("%d parameter annotation entries for %d descriptor parameters; aligning to the last parameter", annotatedCount, descriptorCount)).Emit()
	if annotatedCount < descriptorCount {
		return descriptorCount - annotatedCount
	}
	return 0
}

// DisplayName is the source-level name: the simple class name for constructors.
func (bd *BehaviorDescriptor) DisplayName() string {
	if bd.IsConstructor {
		return bd.Class.SimpleName()
	}
	return bd.Name
}

// signature renders "void p.A.m(java.lang.String, int)" or "p.A(int)".
func signature(c *ClassDescriptor, name string, mt classfile.MethodType) string {
	var sb strings.Builder
	if name != constructorName {
		sb.WriteString(classfile.JavaName(mt.Return))
		sb.WriteByte(' ')
		sb.WriteString(c.DottedName())
		sb.WriteByte('.')
		sb.WriteString(name)
	} else {
		sb.WriteString(c.DottedName())
	}
	sb.WriteByte('(')
	for i, p := range mt.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(classfile.JavaName(p))
	}
	sb.WriteByte(')')
	return sb.String()
}

// localVariables returns the LocalVariableTable of the method body.
func localVariables(cf *classfile.ClassFile, m *classfile.Member) ([]classfile.LocalVariable, bool, error) {
	a := m.Attribute(cf.Pool, classfile.AttrCode)
	if a == nil {
		return nil, false, nil
	}
	code, err := classfile.ParseCode(a.Info)
	if err != nil {
		return nil, false, err
	}
	lvt := classfile.FindAttribute(cf.Pool, code.Attributes, classfile.AttrLocalVariableTable)
	if lvt == nil {
		return nil, false, nil
	}
	rows, err := classfile.ParseLocalVariableTable(lvt.Info)
	if err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

// methodParameters returns the MethodParameters rows when they cover every
// descriptor parameter.
func methodParameters(cf *classfile.ClassFile, m *classfile.Member, count int) ([]classfile.MethodParameter, error) {
	a := m.Attribute(cf.Pool, classfile.AttrMethodParameters)
	if a == nil {
		return nil, nil
	}
	rows, err := classfile.ParseMethodParameters(a.Info)
	if err != nil {
		return nil, err
	}
	if len(rows) != count {
		return nil, nil
	}
	return rows, nil
}
