package classfile

// Annotation is one annotation structure.
type Annotation struct {
	TypeIndex uint16
	Elements  []ElementPair
}

// ElementPair is a named element value.
type ElementPair struct {
	NameIndex uint16
	Value     ElementValue
}

// ElementValue is one element_value. ConstIndex holds const_value_index,
// class_info_index or type_name_index depending on Tag.
type ElementValue struct {
	Tag        byte
	ConstIndex uint16
	EnumConst  uint16
	Annotation *Annotation
	Values     []ElementValue
}

// Type resolves the annotation's field descriptor.
func (a *Annotation) Type(p *Pool) (string, error) {
	return p.Utf8(a.TypeIndex)
}

// ParseAnnotations decodes a Runtime(In)VisibleAnnotations body.
func ParseAnnotations(info []byte) ([]Annotation, error) {
	r := newReader(info)
	out := readAnnotations(r)
	r.expectEnd("annotations")
	return out, r.err
}

// EncodeAnnotations encodes a Runtime(In)VisibleAnnotations body.
func EncodeAnnotations(anns []Annotation) ([]byte, error) {
	w := &writer{}
	writeAnnotations(w, anns)
	return w.result()
}

// ParseParameterAnnotations decodes a Runtime(In)VisibleParameterAnnotations
// body. The result has one entry per num_parameters.
func ParseParameterAnnotations(info []byte) ([][]Annotation, error) {
	r := newReader(info)
	n := int(r.u1("num_parameters"))
	out := make([][]Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, readAnnotations(r))
	}
	r.expectEnd("parameter annotations")
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeParameterAnnotations encodes a Runtime(In)VisibleParameterAnnotations body.
func EncodeParameterAnnotations(params [][]Annotation) ([]byte, error) {
	w := &writer{}
	w.count1(len(params), "num_parameters")
	for _, anns := range params {
		writeAnnotations(w, anns)
	}
	return w.result()
}

func readAnnotations(r *reader) []Annotation {
	n := int(r.u2("num_annotations"))
	out := make([]Annotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, readAnnotation(r))
	}
	return out
}

func readAnnotation(r *reader) Annotation {
	a := Annotation{TypeIndex: r.u2("type_index")}
	n := int(r.u2("num_element_value_pairs"))
	for i := 0; i < n && r.err == nil; i++ {
		name := r.u2("element_name_index")
		a.Elements = append(a.Elements, ElementPair{NameIndex: name, Value: readElementValue(r, 0)})
	}
	return a
}

const maxElementDepth = 64

func readElementValue(r *reader, depth int) ElementValue {
	v := ElementValue{Tag: r.u1("element tag")}
	if r.err != nil {
		return v
	}
	if depth > maxElementDepth {
		r.err = malformed("element values nested deeper than %d", maxElementDepth)
		return v
	}
	switch v.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		v.ConstIndex = r.u2("const_value_index")
	case 'e':
		v.ConstIndex = r.u2("type_name_index")
		v.EnumConst = r.u2("const_name_index")
	case '@':
		a := readAnnotation(r)
		v.Annotation = &a
	case '[':
		n := int(r.u2("num_values"))
		for i := 0; i < n && r.err == nil; i++ {
			v.Values = append(v.Values, readElementValue(r, depth+1))
		}
	default:
		r.err = malformed("element value tag %q", v.Tag)
	}
	return v
}

func writeAnnotations(w *writer, anns []Annotation) {
	w.count2(len(anns), "num_annotations")
	for i := range anns {
		writeAnnotation(w, &anns[i])
	}
}

func writeAnnotation(w *writer, a *Annotation) {
	w.u2(a.TypeIndex)
	w.count2(len(a.Elements), "num_element_value_pairs")
	for _, e := range a.Elements {
		w.u2(e.NameIndex)
		writeElementValue(w, e.Value)
	}
}

func writeElementValue(w *writer, v ElementValue) {
	w.u1(v.Tag)
	switch v.Tag {
	case 'e':
		w.u2(v.ConstIndex)
		w.u2(v.EnumConst)
	case '@':
		if v.Annotation != nil {
			writeAnnotation(w, v.Annotation)
		}
	case '[':
		w.count2(len(v.Values), "num_values")
		for _, sub := range v.Values {
			writeElementValue(w, sub)
		}
	default:
		w.u2(v.ConstIndex)
	}
}

// Type annotation target types.
const (
	TargetClassTypeParameter       uint8 = 0x00
	TargetMethodTypeParameter      uint8 = 0x01
	TargetSupertype                uint8 = 0x10
	TargetClassTypeParameterBound  uint8 = 0x11
	TargetMethodTypeParameterBound uint8 = 0x12
	TargetField                    uint8 = 0x13
	TargetReturn                   uint8 = 0x14
	TargetReceiver                 uint8 = 0x15
	TargetFormalParameter          uint8 = 0x16
	TargetThrows                   uint8 = 0x17
	TargetLocalVariable            uint8 = 0x40
	TargetResourceVariable         uint8 = 0x41
	TargetExceptionParameter       uint8 = 0x42
	TargetInstanceof               uint8 = 0x43
	TargetNew                      uint8 = 0x44
	TargetConstructorReference     uint8 = 0x45
	TargetMethodReference          uint8 = 0x46
	TargetCast                     uint8 = 0x47
	TargetConstructorInvocationArg uint8 = 0x48
	TargetMethodInvocationArg      uint8 = 0x49
	TargetConstructorRefArg        uint8 = 0x4A
	TargetMethodRefArg             uint8 = 0x4B
)

// LocalVarTarget is one entry of a localvar_target table.
type LocalVarTarget struct {
	StartPC uint16
	Length  uint16
	Slot    uint16
}

// TypeAnnotation is one type_annotation structure. Target fields are set
// according to TargetType; TypePath keeps the raw path entries (two bytes each).
type TypeAnnotation struct {
	TargetType uint8
	// type_parameter_index, formal_parameter_index or type_argument_index.
	Index uint8
	// bound_index.
	Bound uint8
	// supertype_index, throws_type_index, exception_table_index or offset.
	Value     uint16
	LocalVars []LocalVarTarget
	TypePath  []byte
	Annotation
}

// IsCodeTarget reports whether the target refers to bytecode offsets.
func (t *TypeAnnotation) IsCodeTarget() bool {
	return t.TargetType >= TargetLocalVariable
}

// ParseTypeAnnotations decodes a Runtime(In)VisibleTypeAnnotations body.
func ParseTypeAnnotations(info []byte) ([]TypeAnnotation, error) {
	r := newReader(info)
	n := int(r.u2("num_annotations"))
	out := make([]TypeAnnotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		t := TypeAnnotation{TargetType: r.u1("target_type")}
		switch t.TargetType {
		case TargetClassTypeParameter, TargetMethodTypeParameter, TargetFormalParameter:
			t.Index = r.u1("type_parameter_index")
		case TargetSupertype, TargetThrows, TargetExceptionParameter,
			TargetInstanceof, TargetNew, TargetConstructorReference, TargetMethodReference:
			t.Value = r.u2("target_info")
		case TargetClassTypeParameterBound, TargetMethodTypeParameterBound:
			t.Index = r.u1("type_parameter_index")
			t.Bound = r.u1("bound_index")
		case TargetField, TargetReturn, TargetReceiver:
		case TargetLocalVariable, TargetResourceVariable:
			k := int(r.u2("table_length"))
			for j := 0; j < k && r.err == nil; j++ {
				t.LocalVars = append(t.LocalVars, LocalVarTarget{
					StartPC: r.u2("start_pc"),
					Length:  r.u2("length"),
					Slot:    r.u2("index"),
				})
			}
		case TargetCast, TargetConstructorInvocationArg, TargetMethodInvocationArg,
			TargetConstructorRefArg, TargetMethodRefArg:
			t.Value = r.u2("offset")
			t.Index = r.u1("type_argument_index")
		default:
			if r.err == nil {
				r.err = malformed("type annotation target %#02x", t.TargetType)
			}
		}
		pathLen := int(r.u1("path_length"))
		t.TypePath = r.bytes(2*pathLen, "type_path")
		t.Annotation = readAnnotation(r)
		out = append(out, t)
	}
	r.expectEnd("type annotations")
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeTypeAnnotations encodes a Runtime(In)VisibleTypeAnnotations body.
func EncodeTypeAnnotations(anns []TypeAnnotation) ([]byte, error) {
	w := &writer{}
	w.count2(len(anns), "num_annotations")
	for i := range anns {
		t := &anns[i]
		w.u1(t.TargetType)
		switch t.TargetType {
		case TargetClassTypeParameter, TargetMethodTypeParameter, TargetFormalParameter:
			w.u1(t.Index)
		case TargetClassTypeParameterBound, TargetMethodTypeParameterBound:
			w.u1(t.Index)
			w.u1(t.Bound)
		case TargetField, TargetReturn, TargetReceiver:
		case TargetLocalVariable, TargetResourceVariable:
			w.count2(len(t.LocalVars), "table_length")
			for _, lv := range t.LocalVars {
				w.u2(lv.StartPC)
				w.u2(lv.Length)
				w.u2(lv.Slot)
			}
		case TargetCast, TargetConstructorInvocationArg, TargetMethodInvocationArg,
			TargetConstructorRefArg, TargetMethodRefArg:
			w.u2(t.Value)
			w.u1(t.Index)
		default:
			w.u2(t.Value)
		}
		w.count1(len(t.TypePath)/2, "path_length")
		w.raw(t.TypePath)
		writeAnnotation(w, &t.Annotation)
	}
	return w.result()
}

// TypePathKinds returns the type_path_kind of every path entry.
func (t *TypeAnnotation) TypePathKinds() []uint8 {
	kinds := make([]uint8, 0, len(t.TypePath)/2)
	for i := 0; i+1 < len(t.TypePath); i += 2 {
		kinds = append(kinds, t.TypePath[i])
	}
	return kinds
}

// Type path kinds.
const (
	PathArray         uint8 = 0
	PathNested        uint8 = 1
	PathWildcardBound uint8 = 2
	PathTypeArgument  uint8 = 3
)
