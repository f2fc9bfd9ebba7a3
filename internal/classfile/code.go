package classfile

import "fmt"

// Attribute names used across the tool.
const (
	AttrCode                                 = "Code"
	AttrLineNumberTable                      = "LineNumberTable"
	AttrLocalVariableTable                   = "LocalVariableTable"
	AttrLocalVariableTypeTable               = "LocalVariableTypeTable"
	AttrStackMapTable                        = "StackMapTable"
	AttrMethodParameters                     = "MethodParameters"
	AttrInnerClasses                         = "InnerClasses"
	AttrEnclosingMethod                      = "EnclosingMethod"
	AttrRecord                               = "Record"
	AttrBootstrapMethods                     = "BootstrapMethods"
	AttrSignature                            = "Signature"
	AttrRuntimeVisibleAnnotations            = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	AttrRuntimeInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	AttrRuntimeVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
)

// MaxCodeLength is the largest code array a method may carry.
const MaxCodeLength = 65535

// ExceptionEntry is one row of a Code attribute's exception table.
type ExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Exceptions []ExceptionEntry
	Attributes []*Attribute
}

// ParseCode decodes the body of a Code attribute.
func ParseCode(info []byte) (*Code, error) {
	r := newReader(info)
	c := &Code{}
	c.MaxStack = r.u2("max_stack")
	c.MaxLocals = r.u2("max_locals")
	length := r.u4("code_length")
	if r.err == nil && (length == 0 || length > MaxCodeLength) {
		return nil, malformed("code_length %d", length)
	}
	c.Bytecode = r.bytes(int(length), "code")
	n := int(r.u2("exception_table_length"))
	if r.err == nil {
		c.Exceptions = make([]ExceptionEntry, 0, n)
		for i := 0; i < n; i++ {
			c.Exceptions = append(c.Exceptions, ExceptionEntry{
				StartPC:   r.u2("start_pc"),
				EndPC:     r.u2("end_pc"),
				HandlerPC: r.u2("handler_pc"),
				CatchType: r.u2("catch_type"),
			})
		}
	}
	c.Attributes = r.attributes("code")
	r.expectEnd("Code")
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// Encode produces the body of a Code attribute.
func (c *Code) Encode() ([]byte, error) {
	w := &writer{buf: make([]byte, 0, len(c.Bytecode)+64)}
	if len(c.Bytecode) > MaxCodeLength {
		return nil, fmt.Errorf("%w: code_length %d", ErrTooLarge, len(c.Bytecode))
	}
	w.u2(c.MaxStack)
	w.u2(c.MaxLocals)
	w.count4(len(c.Bytecode), "code_length")
	w.raw(c.Bytecode)
	w.count2(len(c.Exceptions), "exception_table_length")
	for _, e := range c.Exceptions {
		w.u2(e.StartPC)
		w.u2(e.EndPC)
		w.u2(e.HandlerPC)
		w.u2(e.CatchType)
	}
	w.attributes(c.Attributes)
	return w.result()
}

// LineNumber is one LineNumberTable row.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// ParseLineNumberTable decodes a LineNumberTable body.
func ParseLineNumberTable(info []byte) ([]LineNumber, error) {
	r := newReader(info)
	n := int(r.u2("line_number_table_length"))
	var out []LineNumber
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, LineNumber{StartPC: r.u2("start_pc"), Line: r.u2("line_number")})
	}
	r.expectEnd(AttrLineNumberTable)
	return out, r.err
}

// EncodeLineNumberTable encodes a LineNumberTable body.
func EncodeLineNumberTable(rows []LineNumber) ([]byte, error) {
	w := &writer{}
	w.count2(len(rows), "line_number_table_length")
	for _, l := range rows {
		w.u2(l.StartPC)
		w.u2(l.Line)
	}
	return w.result()
}

// LocalVariable is one row of a LocalVariableTable or LocalVariableTypeTable.
// For the type table DescriptorIndex refers to the generic signature.
type LocalVariable struct {
	StartPC         uint16
	Length          uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Slot            uint16
}

// ParseLocalVariableTable decodes a LocalVariableTable or LocalVariableTypeTable body.
func ParseLocalVariableTable(info []byte) ([]LocalVariable, error) {
	r := newReader(info)
	n := int(r.u2("local_variable_table_length"))
	var out []LocalVariable
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, LocalVariable{
			StartPC:         r.u2("start_pc"),
			Length:          r.u2("length"),
			NameIndex:       r.u2("name_index"),
			DescriptorIndex: r.u2("descriptor_index"),
			Slot:            r.u2("index"),
		})
	}
	r.expectEnd(AttrLocalVariableTable)
	return out, r.err
}

// EncodeLocalVariableTable encodes a LocalVariableTable or LocalVariableTypeTable body.
func EncodeLocalVariableTable(rows []LocalVariable) ([]byte, error) {
	w := &writer{}
	w.count2(len(rows), "local_variable_table_length")
	for _, v := range rows {
		w.u2(v.StartPC)
		w.u2(v.Length)
		w.u2(v.NameIndex)
		w.u2(v.DescriptorIndex)
		w.u2(v.Slot)
	}
	return w.result()
}

// LocalAt returns the row of the variable occupying slot at pc 0, if any.
func LocalAt(rows []LocalVariable, slot uint16) (LocalVariable, bool) {
	for _, v := range rows {
		if v.Slot == slot && v.StartPC == 0 {
			return v, true
		}
	}
	return LocalVariable{}, false
}
