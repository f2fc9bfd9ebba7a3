package model

import (
	"errors"
	"slices"

	"nullguard/internal/classfile"
)

const (
	recordClass           = "java/lang/Record"
	objectMethodsClass    = "java/lang/runtime/ObjectMethods"
	equalsName            = "equals"
	equalsDescriptor      = "(Ljava/lang/Object;)Z"
	constructorName       = "<init>"
	staticInitializerName = "<clinit>"
)

var errStopWalk = errors.New("stop walk")

// recordComponents returns the component descriptors of a record in
// declaration order. Without a Record attribute the instance fields stand in.
func recordComponents(cf *classfile.ClassFile) ([]string, error) {
	if a := cf.Attribute(classfile.AttrRecord); a != nil {
		comps, err := classfile.ParseRecord(a.Info)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(comps))
		for _, c := range comps {
			d, err := cf.Pool.Utf8(c.DescriptorIndex)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}
	var out []string
	for _, f := range cf.Fields {
		if f.Is(classfile.AccStatic) {
			continue
		}
		d, err := f.Descriptor(cf.Pool)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// isCanonicalConstructor matches constructor parameter types against the
// record components by position.
func isCanonicalConstructor(params, components []string) bool {
	return slices.Equal(params, components)
}

// isObjectMethodsEquals reports whether an equals body is the one javac
// generates for records: an invokedynamic bootstrapped by ObjectMethods.
func isObjectMethodsEquals(cf *classfile.ClassFile, m *classfile.Member) (bool, error) {
	a := m.Attribute(cf.Pool, classfile.AttrCode)
	if a == nil {
		return false, nil
	}
	code, err := classfile.ParseCode(a.Info)
	if err != nil {
		return false, err
	}
	var bsms []classfile.BootstrapMethod
	if ba := cf.Attribute(classfile.AttrBootstrapMethods); ba != nil {
		if bsms, err = classfile.ParseBootstrapMethods(ba.Info); err != nil {
			return false, err
		}
	}
	found := false
	err = classfile.Walk(code.Bytecode, func(in classfile.Instruction) error {
		if in.Op != classfile.OpInvokedynamic {
			return nil
		}
		idx, _ := in.PoolIndex()
		c, err := cf.Pool.Get(idx)
		if err != nil {
			return err
		}
		if int(c.Ref1) >= len(bsms) {
			return nil
		}
		owner, _, err := cf.Pool.BootstrapOwner(bsms[c.Ref1])
		if err != nil {
			return err
		}
		if owner == objectMethodsClass {
			found = true
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return false, err
	}
	return found, nil
}
