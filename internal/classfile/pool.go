package classfile

import (
	"fmt"
	"strconv"
)

// Tag identifies a constant-pool entry kind.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

func (t Tag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	}
	return "Tag(" + strconv.Itoa(int(t)) + ")"
}

// Wide reports whether the entry occupies two pool slots.
func (t Tag) Wide() bool {
	return t == TagLong || t == TagDouble
}

// Constant is one constant-pool entry. Which fields are meaningful depends
// on Tag:
//
//	Utf8                         Utf8 (raw modified UTF-8)
//	Integer, Float, Long, Double Value (raw bits)
//	Class, String, MethodType,
//	Module, Package              Ref1
//	*ref, NameAndType            Ref1, Ref2
//	MethodHandle                 Kind, Ref1
//	Dynamic, InvokeDynamic       Ref1 (bootstrap index), Ref2 (NameAndType)
type Constant struct {
	Tag   Tag
	Utf8  []byte
	Value uint64
	Kind  uint8
	Ref1  uint16
	Ref2  uint16
}

func (c *Constant) key() string {
	switch c.Tag {
	case TagUtf8:
		return "1:" + string(c.Utf8)
	case TagInteger, TagFloat, TagLong, TagDouble:
		return fmt.Sprintf("%d:%x", c.Tag, c.Value)
	case TagMethodHandle:
		return fmt.Sprintf("%d:%d:%d", c.Tag, c.Kind, c.Ref1)
	}
	return fmt.Sprintf("%d:%d:%d", c.Tag, c.Ref1, c.Ref2)
}

// Pool is a constant pool. Index 0 and the slot after every Long or Double
// are unusable and hold nil.
type Pool struct {
	entries []*Constant
	index   map[string]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{entries: []*Constant{nil}}
}

// Count is the constant_pool_count value: the number of slots plus one.
func (p *Pool) Count() int {
	return len(p.entries)
}

// Get returns the entry at idx.
func (p *Pool) Get(idx uint16) (*Constant, error) {
	if int(idx) >= len(p.entries) || p.entries[idx] == nil {
		return nil, malformed("invalid constant pool index %d", idx)
	}
	return p.entries[idx], nil
}

func (p *Pool) expect(idx uint16, tag Tag) (*Constant, error) {
	c, err := p.Get(idx)
	if err != nil {
		return nil, err
	}
	if c.Tag != tag {
		return nil, malformed("constant pool index %d is %s, want %s", idx, c.Tag, tag)
	}
	return c, nil
}

// Utf8 resolves a Utf8 entry.
func (p *Pool) Utf8(idx uint16) (string, error) {
	c, err := p.expect(idx, TagUtf8)
	if err != nil {
		return "", err
	}
	return DecodeModifiedUTF8(c.Utf8), nil
}

// ClassName resolves a Class entry to its internal name.
func (p *Pool) ClassName(idx uint16) (string, error) {
	c, err := p.expect(idx, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Ref1)
}

// NameAndType resolves a NameAndType entry.
func (p *Pool) NameAndType(idx uint16) (name, descriptor string, err error) {
	c, err := p.expect(idx, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.Ref1); err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8(c.Ref2)
	return name, descriptor, err
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref entry.
func (p *Pool) MemberRef(idx uint16) (owner, name, descriptor string, err error) {
	c, err := p.Get(idx)
	if err != nil {
		return "", "", "", err
	}
	if c.Tag != TagFieldref && c.Tag != TagMethodref && c.Tag != TagInterfaceMethodref {
		return "", "", "", malformed("constant pool index %d is %s, want a member reference", idx, c.Tag)
	}
	if owner, err = p.ClassName(c.Ref1); err != nil {
		return "", "", "", err
	}
	name, descriptor, err = p.NameAndType(c.Ref2)
	return owner, name, descriptor, err
}

// Describe renders an entry for disassembly listings.
func (p *Pool) Describe(idx uint16) string {
	c, err := p.Get(idx)
	if err != nil {
		return "#" + strconv.Itoa(int(idx)) + "?"
	}
	switch c.Tag {
	case TagUtf8:
		return strconv.Quote(DecodeModifiedUTF8(c.Utf8))
	case TagClass:
		n, _ := p.ClassName(idx)
		return n
	case TagString:
		s, _ := p.Utf8(c.Ref1)
		return strconv.Quote(s)
	case TagInteger:
		return strconv.Itoa(int(int32(uint32(c.Value))))
	case TagLong:
		return strconv.FormatInt(int64(c.Value), 10) + "L"
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		o, n, d, _ := p.MemberRef(idx)
		return o + "." + n + ":" + d
	case TagNameAndType:
		n, d, _ := p.NameAndType(idx)
		return n + ":" + d
	case TagInvokeDynamic, TagDynamic:
		n, d, _ := p.NameAndType(c.Ref2)
		return "#" + strconv.Itoa(int(c.Ref1)) + ":" + n + ":" + d
	}
	return c.Tag.String() + "#" + strconv.Itoa(int(idx))
}

func (p *Pool) buildIndex() {
	if p.index != nil {
		return
	}
	p.index = make(map[string]uint16, len(p.entries))
	for i, c := range p.entries {
		if c == nil {
			continue
		}
		k := c.key()
		if _, ok := p.index[k]; !ok {
			p.index[k] = uint16(i) //nolint:gosec // pool indices are bounded by the u2 count
		}
	}
}

// add appends c unless an equal entry exists and returns its index.
func (p *Pool) add(c *Constant) (uint16, error) {
	p.buildIndex()
	k := c.key()
	if idx, ok := p.index[k]; ok {
		return idx, nil
	}
	slots := 1
	if c.Tag.Wide() {
		slots = 2
	}
	if len(p.entries)+slots > 0xFFFF {
		return 0, ErrPoolFull
	}
	idx := uint16(len(p.entries)) //nolint:gosec // checked above
	p.entries = append(p.entries, c)
	if c.Tag.Wide() {
		p.entries = append(p.entries, nil)
	}
	p.index[k] = idx
	return idx, nil
}

// AddUtf8 interns s.
func (p *Pool) AddUtf8(s string) (uint16, error) {
	return p.add(&Constant{Tag: TagUtf8, Utf8: EncodeModifiedUTF8(s)})
}

// AddClass interns a Class entry for the internal name.
func (p *Pool) AddClass(name string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	return p.add(&Constant{Tag: TagClass, Ref1: n})
}

// AddString interns a String entry.
func (p *Pool) AddString(s string) (uint16, error) {
	n, err := p.AddUtf8(s)
	if err != nil {
		return 0, err
	}
	return p.add(&Constant{Tag: TagString, Ref1: n})
}

// AddInteger interns an Integer entry.
func (p *Pool) AddInteger(v int32) (uint16, error) {
	return p.add(&Constant{Tag: TagInteger, Value: uint64(uint32(v))})
}

// AddNameAndType interns a NameAndType entry.
func (p *Pool) AddNameAndType(name, descriptor string) (uint16, error) {
	n, err := p.AddUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := p.AddUtf8(descriptor)
	if err != nil {
		return 0, err
	}
	return p.add(&Constant{Tag: TagNameAndType, Ref1: n, Ref2: d})
}

func (p *Pool) addRef(tag Tag, owner, name, descriptor string) (uint16, error) {
	cls, err := p.AddClass(owner)
	if err != nil {
		return 0, err
	}
	nat, err := p.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.add(&Constant{Tag: tag, Ref1: cls, Ref2: nat})
}

// AddFieldref interns a Fieldref entry.
func (p *Pool) AddFieldref(owner, name, descriptor string) (uint16, error) {
	return p.addRef(TagFieldref, owner, name, descriptor)
}

// AddMethodref interns a Methodref entry.
func (p *Pool) AddMethodref(owner, name, descriptor string) (uint16, error) {
	return p.addRef(TagMethodref, owner, name, descriptor)
}

// AddInterfaceMethodref interns an InterfaceMethodref entry.
func (p *Pool) AddInterfaceMethodref(owner, name, descriptor string) (uint16, error) {
	return p.addRef(TagInterfaceMethodref, owner, name, descriptor)
}

// AddMethodHandle interns a MethodHandle entry.
func (p *Pool) AddMethodHandle(kind uint8, ref uint16) (uint16, error) {
	return p.add(&Constant{Tag: TagMethodHandle, Kind: kind, Ref1: ref})
}

// AddInvokeDynamic interns an InvokeDynamic entry.
func (p *Pool) AddInvokeDynamic(bootstrap uint16, name, descriptor string) (uint16, error) {
	nat, err := p.AddNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	return p.add(&Constant{Tag: TagInvokeDynamic, Ref1: bootstrap, Ref2: nat})
}

func readPool(r *reader) *Pool {
	count := int(r.u2("constant_pool_count"))
	if r.err != nil {
		return nil
	}
	if count == 0 {
		r.err = malformed("constant_pool_count is 0")
		return nil
	}
	p := &Pool{entries: make([]*Constant, 1, count)}
	for len(p.entries) < count && r.err == nil {
		tag := Tag(r.u1("constant tag"))
		c := &Constant{Tag: tag}
		switch tag {
		case TagUtf8:
			n := int(r.u2("utf8 length"))
			c.Utf8 = r.bytes(n, "utf8 bytes")
		case TagInteger, TagFloat:
			c.Value = uint64(r.u4("constant value"))
		case TagLong, TagDouble:
			c.Value = r.u8("constant value")
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.Ref1 = r.u2("constant reference")
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
			c.Ref1 = r.u2("constant reference")
			c.Ref2 = r.u2("constant reference")
		case TagMethodHandle:
			c.Kind = r.u1("reference kind")
			c.Ref1 = r.u2("constant reference")
		default:
			if r.err == nil {
				r.err = malformed("unknown constant tag %d at index %d", tag, len(p.entries))
			}
			return nil
		}
		p.entries = append(p.entries, c)
		if tag.Wide() {
			if len(p.entries) >= count {
				r.err = malformed("wide constant in last pool slot")
				return nil
			}
			p.entries = append(p.entries, nil)
		}
	}
	return p
}

func (p *Pool) write(w *writer) {
	w.count2(len(p.entries), "constant_pool_count")
	for _, c := range p.entries[1:] {
		if c == nil {
			continue
		}
		w.u1(uint8(c.Tag))
		switch c.Tag {
		case TagUtf8:
			w.count2(len(c.Utf8), "utf8 length")
			w.raw(c.Utf8)
		case TagInteger, TagFloat:
			w.u4(uint32(c.Value))
		case TagLong, TagDouble:
			w.u8(c.Value)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(c.Ref1)
		case TagMethodHandle:
			w.u1(c.Kind)
			w.u2(c.Ref1)
		default:
			w.u2(c.Ref1)
			w.u2(c.Ref2)
		}
	}
}
