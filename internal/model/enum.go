package model

import "nullguard/internal/classfile"

// enumConstructorSkew detects javac's parameter annotation layout for enum
// constructors: the descriptor starts with the synthetic name and ordinal
// parameters, but the parameter annotation tables only cover the declared
// ones. Class files older than Java 5 have no enums.
//
// It reports the number of leading descriptor parameters the annotation
// tables skip. Other mismatches are left to the caller.
func enumConstructorSkew(major uint16, descriptorCount, annotatedCount int) (int, bool) {
	if major < classfile.MajorJava5 || descriptorCount < 2 {
		return 0, false
	}
	if annotatedCount == descriptorCount-2 {
		return 2, true
	}
	return 0, false
}
