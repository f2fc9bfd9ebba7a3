package diag

import "strings"

// Location identifies what a diagnostic is about. Empty fields are unknown.
type Location struct {
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Class     string `json:"class,omitempty" yaml:"class,omitempty"`
	Behavior  string `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Parameter string `json:"parameter,omitempty" yaml:"parameter,omitempty"`
}

// String renders "path: Class.behavior(parameter)" leaving out unknown parts.
func (l Location) String() string {
	var sb strings.Builder
	sb.WriteString(l.Path)
	if l.Class != "" {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(l.Class)
		if l.Behavior != "" {
			sb.WriteString(".")
			sb.WriteString(l.Behavior)
		}
		if l.Parameter != "" {
			sb.WriteString("(")
			sb.WriteString(l.Parameter)
			sb.WriteString(")")
		}
	}
	return sb.String()
}

type Note struct {
	Loc Location
	Msg string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Location
	Notes    []Note
}

func New(sev Severity, code Code, primary Location, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary Location, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func NewWarning(code Code, primary Location, msg string) Diagnostic {
	return New(SevWarning, code, primary, msg)
}

func (d Diagnostic) WithNote(loc Location, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Loc: loc, Msg: msg})
	return d
}
