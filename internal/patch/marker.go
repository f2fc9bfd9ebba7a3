package patch

import (
	"strings"

	"nullguard/internal/classfile"
)

// MarkerAttribute names the class attribute added to every instrumented class.
const MarkerAttribute = "NullGuardMeta"

const markerPrefix = "processorVersion="

// ProcessorVersion returns the version recorded by the instrumentation
// marker. ok is false for classes that were never instrumented.
func ProcessorVersion(cf *classfile.ClassFile) (version string, ok bool) {
	a := cf.Attribute(MarkerAttribute)
	if a == nil {
		return "", false
	}
	v, found := strings.CutPrefix(string(a.Info), markerPrefix)
	if !found {
		return "", false
	}
	return v, true
}

// IsInstrumented reports whether cf carries the marker attribute.
func IsInstrumented(cf *classfile.ClassFile) bool {
	return cf.Attribute(MarkerAttribute) != nil
}

func addMarker(cf *classfile.ClassFile, version string) error {
	a, err := classfile.NewAttribute(cf.Pool, MarkerAttribute, []byte(markerPrefix+version))
	if err != nil {
		return err
	}
	cf.Attributes = classfile.ReplaceAttribute(cf.Pool, cf.Attributes, a)
	return nil
}
