package classfile

// MethodParameter is one MethodParameters entry. NameIndex is 0 for an
// unnamed parameter.
type MethodParameter struct {
	NameIndex uint16
	Access    uint16
}

// ParseMethodParameters decodes a MethodParameters body.
func ParseMethodParameters(info []byte) ([]MethodParameter, error) {
	r := newReader(info)
	n := int(r.u1("parameters_count"))
	out := make([]MethodParameter, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, MethodParameter{NameIndex: r.u2("name_index"), Access: r.u2("access_flags")})
	}
	r.expectEnd(AttrMethodParameters)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeMethodParameters encodes a MethodParameters body.
func EncodeMethodParameters(params []MethodParameter) ([]byte, error) {
	w := &writer{}
	w.count1(len(params), "parameters_count")
	for _, p := range params {
		w.u2(p.NameIndex)
		w.u2(p.Access)
	}
	return w.result()
}

// InnerClass is one InnerClasses entry.
type InnerClass struct {
	InnerClassInfo uint16
	OuterClassInfo uint16
	InnerName      uint16
	Access         uint16
}

// ParseInnerClasses decodes an InnerClasses body.
func ParseInnerClasses(info []byte) ([]InnerClass, error) {
	r := newReader(info)
	n := int(r.u2("number_of_classes"))
	out := make([]InnerClass, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, InnerClass{
			InnerClassInfo: r.u2("inner_class_info_index"),
			OuterClassInfo: r.u2("outer_class_info_index"),
			InnerName:      r.u2("inner_name_index"),
			Access:         r.u2("inner_class_access_flags"),
		})
	}
	r.expectEnd(AttrInnerClasses)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeInnerClasses encodes an InnerClasses body.
func EncodeInnerClasses(rows []InnerClass) ([]byte, error) {
	w := &writer{}
	w.count2(len(rows), "number_of_classes")
	for _, c := range rows {
		w.u2(c.InnerClassInfo)
		w.u2(c.OuterClassInfo)
		w.u2(c.InnerName)
		w.u2(c.Access)
	}
	return w.result()
}

// EnclosingMethod is the EnclosingMethod attribute of a local or anonymous class.
type EnclosingMethod struct {
	ClassIndex  uint16
	MethodIndex uint16
}

// ParseEnclosingMethod decodes an EnclosingMethod body.
func ParseEnclosingMethod(info []byte) (EnclosingMethod, error) {
	r := newReader(info)
	em := EnclosingMethod{ClassIndex: r.u2("class_index"), MethodIndex: r.u2("method_index")}
	r.expectEnd(AttrEnclosingMethod)
	return em, r.err
}

// RecordComponent is one component of a Record attribute.
type RecordComponent struct {
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []*Attribute
}

// ParseRecord decodes a Record body.
func ParseRecord(info []byte) ([]RecordComponent, error) {
	r := newReader(info)
	n := int(r.u2("components_count"))
	out := make([]RecordComponent, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		c := RecordComponent{NameIndex: r.u2("name_index"), DescriptorIndex: r.u2("descriptor_index")}
		c.Attributes = r.attributes("record component")
		out = append(out, c)
	}
	r.expectEnd(AttrRecord)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeRecord encodes a Record body.
func EncodeRecord(components []RecordComponent) ([]byte, error) {
	w := &writer{}
	w.count2(len(components), "components_count")
	for _, c := range components {
		w.u2(c.NameIndex)
		w.u2(c.DescriptorIndex)
		w.attributes(c.Attributes)
	}
	return w.result()
}

// BootstrapMethod is one BootstrapMethods entry.
type BootstrapMethod struct {
	MethodRef uint16
	Args      []uint16
}

// ParseBootstrapMethods decodes a BootstrapMethods body.
func ParseBootstrapMethods(info []byte) ([]BootstrapMethod, error) {
	r := newReader(info)
	n := int(r.u2("num_bootstrap_methods"))
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		bm := BootstrapMethod{MethodRef: r.u2("bootstrap_method_ref")}
		argc := int(r.u2("num_bootstrap_arguments"))
		for j := 0; j < argc && r.err == nil; j++ {
			bm.Args = append(bm.Args, r.u2("bootstrap_argument"))
		}
		out = append(out, bm)
	}
	r.expectEnd(AttrBootstrapMethods)
	if r.err != nil {
		return nil, r.err
	}
	return out, nil
}

// EncodeBootstrapMethods encodes a BootstrapMethods body.
func EncodeBootstrapMethods(methods []BootstrapMethod) ([]byte, error) {
	w := &writer{}
	w.count2(len(methods), "num_bootstrap_methods")
	for _, bm := range methods {
		w.u2(bm.MethodRef)
		w.count2(len(bm.Args), "num_bootstrap_arguments")
		for _, a := range bm.Args {
			w.u2(a)
		}
	}
	return w.result()
}

// BootstrapOwner resolves the class declaring the bootstrap method handle of bm.
func (p *Pool) BootstrapOwner(bm BootstrapMethod) (owner, name string, err error) {
	h, err := p.expect(bm.MethodRef, TagMethodHandle)
	if err != nil {
		return "", "", err
	}
	owner, name, _, err = p.MemberRef(h.Ref1)
	return owner, name, err
}
