package codegen

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"nullguard/internal/classfile"
)

// UnsupportedError reports a Code attribute that cannot be relocated safely.
type UnsupportedError struct {
	Attribute string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("cannot relocate code attribute %q", e.Attribute)
}

// Result describes one injection.
type Result struct {
	Prologue    Prologue
	MaxStackWas uint16
	MaxStack    uint16
}

// Inject prepends the guards to the body of m and rewrites its Code attribute.
// Branches, the exception table, line and local variable tables, stack map
// frames and code type annotations are moved past the prologue.
func Inject(cf *classfile.ClassFile, m *classfile.Member, t Target, guards []Guard) (Result, error) {
	attr := m.Attribute(cf.Pool, classfile.AttrCode)
	if attr == nil {
		return Result{}, errors.New("method has no Code attribute")
	}
	code, err := classfile.ParseCode(attr.Info)
	if err != nil {
		return Result{}, err
	}
	// reject before touching the pool so the class can still be copied verbatim
	for _, a := range code.Attributes {
		name, err := cf.Pool.Utf8(a.NameIndex)
		if err != nil {
			return Result{}, err
		}
		if !relocatable[name] {
			return Result{}, &UnsupportedError{Attribute: name}
		}
	}

	pro, err := Assemble(cf.Pool, t, guards)
	if err != nil {
		return Result{}, err
	}
	shift, err := safecast.Conv[uint16](len(pro.Code))
	if err != nil {
		return Result{}, fmt.Errorf("%w: prologue of %d bytes", classfile.ErrTooLarge, len(pro.Code))
	}
	res := Result{Prologue: pro, MaxStackWas: code.MaxStack}
	r := relocator{shift: shift}

	code.Bytecode = append(append(make([]byte, 0, len(pro.Code)+len(code.Bytecode)), pro.Code...), code.Bytecode...)
	code.MaxStack = max(code.MaxStack, guardStack)
	res.MaxStack = code.MaxStack
	for i := range code.Exceptions {
		e := &code.Exceptions[i]
		e.StartPC += shift
		e.EndPC += shift
		e.HandlerPC += shift
	}

	hasFrames := false
	for _, a := range code.Attributes {
		name, _ := cf.Pool.Utf8(a.NameIndex)
		switch name {
		case classfile.AttrStackMapTable:
			hasFrames = true
			err = r.frames(a, pro.Targets)
		default:
			err = r.relocate(name, a)
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	if !hasFrames && cf.Major >= classfile.MajorJava6 {
		a := &classfile.Attribute{}
		if a.NameIndex, err = cf.Pool.AddUtf8(classfile.AttrStackMapTable); err != nil {
			return Result{}, err
		}
		if err := r.frames(a, pro.Targets); err != nil {
			return Result{}, err
		}
		code.Attributes = append(code.Attributes, a)
	}

	if attr.Info, err = code.Encode(); err != nil {
		return Result{}, err
	}
	return res, nil
}
