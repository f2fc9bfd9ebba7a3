package classfile

import "fmt"

// Parse decodes a class file. Attribute bodies are kept raw.
func Parse(data []byte) (*ClassFile, error) {
	r := newReader(data)
	if magic := r.u4("magic"); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("%w: magic %#08x", ErrBadMagic, magic)
	}
	cf := &ClassFile{}
	cf.Minor = r.u2("minor_version")
	cf.Major = r.u2("major_version")
	cf.Pool = readPool(r)
	cf.Access = r.u2("access_flags")
	cf.ThisClass = r.u2("this_class")
	cf.SuperClass = r.u2("super_class")
	n := int(r.u2("interfaces_count"))
	if r.err == nil {
		cf.Interfaces = make([]uint16, 0, n)
		for i := 0; i < n; i++ {
			cf.Interfaces = append(cf.Interfaces, r.u2("interface"))
		}
	}
	cf.Fields = readMembers(r, "field")
	cf.Methods = readMembers(r, "method")
	cf.Attributes = r.attributes("class")
	if r.err != nil {
		return nil, r.err
	}
	if !r.done() {
		return nil, malformed("%d trailing bytes after class attributes", len(data)-r.off)
	}
	return cf, nil
}

func readMembers(r *reader, what string) []*Member {
	n := int(r.u2(what + "s_count"))
	if r.err != nil {
		return nil
	}
	members := make([]*Member, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		m := &Member{}
		m.Access = r.u2(what + " access_flags")
		m.NameIndex = r.u2(what + " name_index")
		m.DescriptorIndex = r.u2(what + " descriptor_index")
		m.Attributes = r.attributes(what)
		members = append(members, m)
	}
	return members
}

// Bytes encodes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 4096)}
	w.u4(Magic)
	w.u2(cf.Minor)
	w.u2(cf.Major)
	cf.Pool.write(w)
	w.u2(cf.Access)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	w.count2(len(cf.Interfaces), "interfaces_count")
	for _, i := range cf.Interfaces {
		w.u2(i)
	}
	writeMembers(w, cf.Fields, "fields_count")
	writeMembers(w, cf.Methods, "methods_count")
	w.attributes(cf.Attributes)
	return w.result()
}

func writeMembers(w *writer, members []*Member, what string) {
	w.count2(len(members), what)
	for _, m := range members {
		w.u2(m.Access)
		w.u2(m.NameIndex)
		w.u2(m.DescriptorIndex)
		w.attributes(m.Attributes)
	}
}
