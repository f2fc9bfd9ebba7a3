// Package nullness implements the nullness operator algebra used to resolve the
// effective nullness of a parameter from the markers found on its enclosing scopes.
//
// Scopes nest module → package → class → method → parameter. The innermost scope
// carrying an explicit operator wins; unspecified scopes defer to their parent.
package nullness

import "fmt"

// Operator is a nullness operator as defined by the JSpecify nullness model.
type Operator uint8

const (
	// Unspecified means there is no information; the enclosing scope decides.
	Unspecified Operator = iota
	// UnionNull means the type usage includes null.
	UnionNull
	// MinusNull means the type usage excludes null.
	MinusNull
	// NoChange means nullness is taken unmodified from a substituted type argument.
	NoChange
)

// Operators lists every operator in declaration order.
var Operators = [...]Operator{UnionNull, MinusNull, NoChange, Unspecified}

func (o Operator) String() string {
	switch o {
	case UnionNull:
		return "UNION_NULL"
	case MinusNull:
		return "MINUS_NULL"
	case NoChange:
		return "NO_CHANGE"
	case Unspecified:
		return "UNSPECIFIED"
	}
	return fmt.Sprintf("Operator(%d)", uint8(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// IsExplicit reports whether o overrides the enclosing scope.
func (o Operator) IsExplicit() bool {
	return o == UnionNull || o == MinusNull
}

// AndThen combines the operator of an enclosing scope with the operator of the
// scope nested inside it. An explicit inner operator wins, otherwise the outer
// operator propagates.
func AndThen(outer, inner Operator) Operator {
	if inner.IsExplicit() {
		return inner
	}
	return outer
}

// CombineWithParent returns o when it is explicit and otherwise asks parent.
// parent is not called when o is explicit.
func (o Operator) CombineWithParent(parent func() Operator) Operator {
	if o.IsExplicit() || parent == nil {
		return o
	}
	return parent()
}

// ScopeFunc yields the operator for a single scope. Reading a scope may fail
// when its markers contradict each other.
type ScopeFunc func() (Operator, error)

// Fixed returns a ScopeFunc that always yields op.
func Fixed(op Operator) ScopeFunc {
	return func() (Operator, error) { return op, nil }
}

// Resolve folds scopes with AndThen. Scopes are given innermost first; an outer
// scope is only evaluated when every scope inside it yielded a non-explicit
// operator. The result equals AndThen(...AndThen(AndThen(sN, sN-1)...), s0).
func Resolve(scopes ...ScopeFunc) (Operator, error) {
	result := Unspecified
	for _, scope := range scopes {
		if scope == nil {
			continue
		}
		op, err := scope()
		if err != nil {
			return Unspecified, err
		}
		if op.IsExplicit() {
			return op, nil
		}
		// with nothing explicit the outermost scope's value propagates
		result = op
	}
	return result, nil
}
