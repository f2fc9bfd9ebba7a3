package classfile

import "strings"

// MethodType is a parsed method descriptor.
type MethodType struct {
	Params []string
	Return string
}

// ParseMethodDescriptor splits "(ILjava/lang/String;[J)V" into field descriptors.
func ParseMethodDescriptor(desc string) (MethodType, error) {
	if !strings.HasPrefix(desc, "(") {
		return MethodType{}, malformed("method descriptor %q", desc)
	}
	var mt MethodType
	i := 1
	for i < len(desc) && desc[i] != ')' {
		end, err := fieldEnd(desc, i)
		if err != nil {
			return MethodType{}, err
		}
		mt.Params = append(mt.Params, desc[i:end])
		i = end
	}
	if i >= len(desc) {
		return MethodType{}, malformed("method descriptor %q: missing ')'", desc)
	}
	ret := desc[i+1:]
	if ret != "V" {
		end, err := fieldEnd(ret, 0)
		if err != nil || end != len(ret) {
			return MethodType{}, malformed("method descriptor %q: bad return type", desc)
		}
	}
	mt.Return = ret
	return mt, nil
}

func fieldEnd(desc string, i int) (int, error) {
	start := i
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return 0, malformed("descriptor %q: truncated at %d", desc, start)
	}
	switch desc[i] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(desc[i:], ';')
		if semi <= 1 {
			return 0, malformed("descriptor %q: unterminated class type at %d", desc, start)
		}
		return i + semi + 1, nil
	}
	return 0, malformed("descriptor %q: unexpected %q at %d", desc, desc[i], i)
}

// IsPrimitive reports whether a field descriptor names a primitive type.
func IsPrimitive(fieldDesc string) bool {
	return fieldDesc != "" && fieldDesc[0] != 'L' && fieldDesc[0] != '['
}

// SlotSize is the number of local-variable slots a value of the type takes.
func SlotSize(fieldDesc string) int {
	if fieldDesc == "J" || fieldDesc == "D" {
		return 2
	}
	return 1
}

// InternalName returns the internal class name of an object descriptor
// ("Ljava/lang/String;" -> "java/lang/String"), or "" otherwise.
func InternalName(fieldDesc string) string {
	if len(fieldDesc) > 2 && fieldDesc[0] == 'L' && fieldDesc[len(fieldDesc)-1] == ';' {
		return fieldDesc[1 : len(fieldDesc)-1]
	}
	return ""
}

var primitiveNames = map[byte]string{
	'B': "byte", 'C': "char", 'D': "double", 'F': "float",
	'I': "int", 'J': "long", 'S': "short", 'Z': "boolean", 'V': "void",
}

// JavaName renders a field descriptor as source-level type name.
func JavaName(fieldDesc string) string {
	dims := 0
	for dims < len(fieldDesc) && fieldDesc[dims] == '[' {
		dims++
	}
	base := fieldDesc[dims:]
	if base == "" {
		return fieldDesc
	}
	name := base
	if n, ok := primitiveNames[base[0]]; ok && len(base) == 1 {
		name = n
	} else if in := InternalName(base); in != "" {
		name = strings.ReplaceAll(in, "/", ".")
	}
	return name + strings.Repeat("[]", dims)
}

// PackageOf returns the package part of an internal name ("a/b/C" -> "a/b").
func PackageOf(internalName string) string {
	if i := strings.LastIndexByte(internalName, '/'); i >= 0 {
		return internalName[:i]
	}
	return ""
}

// DottedName converts an internal name to its dotted form ("a/b/C" -> "a.b.C").
func DottedName(internalName string) string {
	return strings.ReplaceAll(internalName, "/", ".")
}
