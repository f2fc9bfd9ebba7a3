package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// configuration
	CfgInfo          Code = 1000
	CfgInvalidString Code = 1001
	CfgUnknownCheck  Code = 1002
	CfgProjectFile   Code = 1003
	CfgMarkerKind    Code = 1004

	// nullness
	NulInfo     Code = 2000
	NulConflict Code = 2001

	// structural anomalies
	StrInfo                Code = 3000
	StrMissingLocalVars    Code = 3001
	StrMalformedName       Code = 3002
	StrNameMismatch        Code = 3003
	StrUnresolvedClasspath Code = 3004
	StrUnresolvedSuper     Code = 3005
	StrOldClassVersion     Code = 3006
	StrUnknownCodeAttr     Code = 3007
	StrParameterSkew       Code = 3008
	StrAlreadyInstrumented Code = 3009
	StrUnparsableClass     Code = 3010

	// filesystem
	IOInfo         Code = 4000
	IOReadFailed   Code = 4001
	IOWriteFailed  Code = 4002
	IONotDirectory Code = 4003

	// code generation
	GenInfo         Code = 5000
	GenCodeTooLarge Code = 5001
	GenPoolFull     Code = 5002
	GenEncode       Code = 5003

	// observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
	ObsSummary Code = 6002
)

var (
	codeDescription = map[Code]string{
		UnknownCode:            "Unknown error",
		CfgInfo:                "Configuration information",
		CfgInvalidString:       "invalid configuration string",
		CfgUnknownCheck:        "unknown check strategy",
		CfgProjectFile:         "invalid project file",
		CfgMarkerKind:          "unknown marker kind",
		NulInfo:                "Nullness information",
		NulConflict:            "scope is annotated both nullable and non-null",
		StrInfo:                "Structure information",
		StrMissingLocalVars:    "missing local variable table",
		StrMalformedName:       "malformed class name",
		StrNameMismatch:        "class name does not match its path",
		StrUnresolvedClasspath: "classpath entry cannot be resolved",
		StrUnresolvedSuper:     "superclass cannot be resolved",
		StrOldClassVersion:     "class file version too old to instrument",
		StrUnknownCodeAttr:     "unknown attribute in method code",
		StrParameterSkew:       "parameter annotation count does not match descriptor",
		StrAlreadyInstrumented: "class already instrumented",
		StrUnparsableClass:     "class file cannot be parsed",
		IOInfo:                 "I/O information",
		IOReadFailed:           "I/O read error",
		IOWriteFailed:          "I/O write error",
		IONotDirectory:         "not a directory",
		GenInfo:                "Code generation information",
		GenCodeTooLarge:        "method code too large after instrumentation",
		GenPoolFull:            "constant pool full",
		GenEncode:              "class file encoding failed",
		ObsInfo:                "Observability information",
		ObsTimings:             "Pipeline timings",
		ObsSummary:             "Pass summary",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("NUL%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("STR%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("GEN%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// MarshalText implements encoding.TextMarshaler.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.ID()), nil
}
