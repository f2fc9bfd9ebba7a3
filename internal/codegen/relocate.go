package codegen

import (
	"fortio.org/safecast"

	"nullguard/internal/classfile"
)

// relocatable lists the Code sub-attributes Inject knows how to move.
var relocatable = map[string]bool{
	classfile.AttrLineNumberTable:                 true,
	classfile.AttrLocalVariableTable:              true,
	classfile.AttrLocalVariableTypeTable:          true,
	classfile.AttrStackMapTable:                   true,
	classfile.AttrRuntimeVisibleTypeAnnotations:   true,
	classfile.AttrRuntimeInvisibleTypeAnnotations: true,
}

type relocator struct {
	shift uint16
}

func (r relocator) relocate(name string, a *classfile.Attribute) error {
	var err error
	switch name {
	case classfile.AttrLineNumberTable:
		a.Info, err = r.lines(a.Info)
	case classfile.AttrLocalVariableTable, classfile.AttrLocalVariableTypeTable:
		a.Info, err = r.locals(a.Info)
	case classfile.AttrRuntimeVisibleTypeAnnotations, classfile.AttrRuntimeInvisibleTypeAnnotations:
		a.Info, err = r.typeAnnotations(a.Info)
	}
	return err
}

// lines keeps rows starting at 0 so the prologue reports the first line.
func (r relocator) lines(info []byte) ([]byte, error) {
	rows, err := classfile.ParseLineNumberTable(info)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].StartPC != 0 {
			rows[i].StartPC += r.shift
		}
	}
	return classfile.EncodeLineNumberTable(rows)
}

// span moves a [start, start+length) range. Ranges starting at 0 (the
// parameters) grow to cover the prologue.
func (r relocator) span(start, length uint16) (uint16, uint16, error) {
	if start == 0 {
		l, err := safecast.Conv[uint16](int(length) + int(r.shift))
		return 0, l, err
	}
	s, err := safecast.Conv[uint16](int(start) + int(r.shift))
	return s, length, err
}

func (r relocator) locals(info []byte) ([]byte, error) {
	rows, err := classfile.ParseLocalVariableTable(info)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].StartPC, rows[i].Length, err = r.span(rows[i].StartPC, rows[i].Length); err != nil {
			return nil, err
		}
	}
	return classfile.EncodeLocalVariableTable(rows)
}

func (r relocator) typeAnnotations(info []byte) ([]byte, error) {
	anns, err := classfile.ParseTypeAnnotations(info)
	if err != nil {
		return nil, err
	}
	for i := range anns {
		ta := &anns[i]
		switch {
		case ta.TargetType == classfile.TargetLocalVariable || ta.TargetType == classfile.TargetResourceVariable:
			for j := range ta.LocalVars {
				lv := &ta.LocalVars[j]
				if lv.StartPC, lv.Length, err = r.span(lv.StartPC, lv.Length); err != nil {
					return nil, err
				}
			}
		case ta.TargetType == classfile.TargetExceptionParameter:
			// indexes the exception table, which keeps its order
		case ta.TargetType >= classfile.TargetInstanceof:
			ta.Value += r.shift
		}
	}
	return classfile.EncodeTypeAnnotations(anns)
}

// frames rewrites a StackMapTable: one same_frame per guard branch target,
// then the original frames at their moved offsets. A guard target landing on
// an existing frame at offset 0 reuses that frame.
func (r relocator) frames(a *classfile.Attribute, targets []int) error {
	var old []classfile.Frame
	if len(a.Info) > 0 {
		var err error
		if old, err = classfile.ParseStackMapTable(a.Info); err != nil {
			return err
		}
	}
	firstAtZero := len(old) > 0 && old[0].OffsetDelta == 0

	out := make([]classfile.Frame, 0, len(targets)+len(old))
	prev := -1
	emit := func(f classfile.Frame, at int) error {
		delta := at
		if prev >= 0 {
			delta = at - prev - 1
		}
		d, err := safecast.Conv[uint16](delta)
		if err != nil {
			return err
		}
		f.OffsetDelta = d
		out = append(out, f)
		prev = at
		return nil
	}
	for _, at := range targets {
		if firstAtZero && at == int(r.shift) {
			continue
		}
		if err := emit(classfile.SameFrame(0), at); err != nil {
			return err
		}
	}
	abs := -1
	for i, f := range old {
		if i == 0 {
			abs = int(f.OffsetDelta)
		} else {
			abs += int(f.OffsetDelta) + 1
		}
		f.ShiftUninitialized(r.shift)
		if err := emit(f, abs+int(r.shift)); err != nil {
			return err
		}
	}
	info, err := classfile.EncodeStackMapTable(out)
	if err != nil {
		return err
	}
	a.Info = info
	return nil
}
