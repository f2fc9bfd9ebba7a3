package nullness

import (
	"fmt"
	"sort"
	"strings"
)

// Level identifies the scope a set of markers was read from.
type Level uint8

const (
	LevelModule Level = iota + 1
	LevelPackage
	LevelClass
	LevelMethod
	LevelParameter
)

func (l Level) String() string {
	switch l {
	case LevelModule:
		return "module"
	case LevelPackage:
		return "package"
	case LevelClass:
		return "class"
	case LevelMethod:
		return "method"
	case LevelParameter:
		return "parameter"
	}
	return "unknown"
}

// Markers records which nullness markers are present on one scope. A field
// holds the descriptor of the first matching annotation, or "" when absent.
type Markers struct {
	NonNull  string
	Nullable string
}

// IsEmpty reports whether no marker was found.
func (m Markers) IsEmpty() bool {
	return m.NonNull == "" && m.Nullable == ""
}

// Merge combines markers read from two attribute tables of the same scope.
func (m Markers) Merge(other Markers) Markers {
	if m.NonNull == "" {
		m.NonNull = other.NonNull
	}
	if m.Nullable == "" {
		m.Nullable = other.Nullable
	}
	return m
}

// Operator converts raw markers into an operator. A scope carrying both a
// non-null and a nullable marker is a configuration error.
func (m Markers) Operator(level Level, owner string) (Operator, error) {
	switch {
	case m.NonNull != "" && m.Nullable != "":
		return Unspecified, &ConflictError{Level: level, Owner: owner, NonNull: m.NonNull, Nullable: m.Nullable}
	case m.NonNull != "":
		return MinusNull, nil
	case m.Nullable != "":
		return UnionNull, nil
	}
	return NoChange, nil
}

// ConflictError reports a scope annotated as both non-null and nullable.
type ConflictError struct {
	Level    Level
	Owner    string
	NonNull  string
	Nullable string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s is annotated with both @%s and @%s",
		e.Level, e.Owner, SimpleName(e.NonNull), SimpleName(e.Nullable))
}

// SimpleName strips package and descriptor decoration from an annotation
// descriptor: "Lorg/jspecify/annotations/NullMarked;" -> "NullMarked".
func SimpleName(descriptor string) string {
	s := strings.TrimSuffix(strings.TrimPrefix(descriptor, "L"), ";")
	if i := strings.LastIndexAny(s, "/$"); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// MarkerKind selects one family of nullness annotations.
type MarkerKind uint8

const (
	KindJSpecify MarkerKind = iota + 1
	KindCabe
	KindJetBrains
)

// AllKinds lists every supported marker family.
var AllKinds = []MarkerKind{KindJSpecify, KindCabe, KindJetBrains}

func (k MarkerKind) String() string {
	switch k {
	case KindJSpecify:
		return "jspecify"
	case KindCabe:
		return "cabe"
	case KindJetBrains:
		return "jetbrains"
	}
	return "unknown"
}

// ParseKind parses the textual form produced by MarkerKind.String.
func ParseKind(s string) (MarkerKind, error) {
	for _, k := range AllKinds {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown marker kind %q (expected jspecify|cabe|jetbrains)", s)
}

// ParseKinds parses a list of marker kinds. An empty list selects all kinds.
func ParseKinds(values []string) ([]MarkerKind, error) {
	if len(values) == 0 {
		return AllKinds, nil
	}
	seen := make(map[MarkerKind]bool, len(values))
	kinds := make([]MarkerKind, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		k, err := ParseKind(v)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds, nil
}

// vocabulary holds annotation descriptors for one marker kind. Default markers
// apply to module, package, class and method scopes; the others to parameters.
type vocabulary struct {
	defaultNonNull  string
	defaultNullable string
	nonNull         []string
	nullable        []string
}

func (k MarkerKind) vocabulary() vocabulary {
	switch k {
	case KindJSpecify:
		return vocabulary{
			defaultNonNull:  "Lorg/jspecify/annotations/NullMarked;",
			defaultNullable: "Lorg/jspecify/annotations/NullUnmarked;",
			nonNull:         []string{"Lorg/jspecify/annotations/NonNull;"},
			nullable:        []string{"Lorg/jspecify/annotations/Nullable;"},
		}
	case KindCabe:
		return vocabulary{
			defaultNonNull:  "Lcom/dua3/cabe/annotations/NotNullApi;",
			defaultNullable: "Lcom/dua3/cabe/annotations/NullableApi;",
			nonNull:         []string{"Lcom/dua3/cabe/annotations/NotNull;"},
			nullable:        []string{"Lcom/dua3/cabe/annotations/Nullable;"},
		}
	case KindJetBrains:
		return vocabulary{
			nonNull:  []string{"Lorg/jetbrains/annotations/NotNull;"},
			nullable: []string{"Lorg/jetbrains/annotations/Nullable;"},
		}
	}
	return vocabulary{}
}

// Vocabulary classifies annotation descriptors for a set of marker kinds.
type Vocabulary struct {
	kinds []MarkerKind
}

// NewVocabulary returns a vocabulary for kinds; no kinds selects all of them.
func NewVocabulary(kinds ...MarkerKind) Vocabulary {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	return Vocabulary{kinds: append([]MarkerKind(nil), kinds...)}
}

// Kinds returns the marker kinds the vocabulary recognises.
func (v Vocabulary) Kinds() []MarkerKind {
	return append([]MarkerKind(nil), v.kinds...)
}

// Scan returns the markers among descriptors that are meaningful at level.
func (v Vocabulary) Scan(level Level, descriptors []string) Markers {
	var m Markers
	for _, d := range descriptors {
		nonNull, nullable := v.classify(level, d)
		if nonNull && m.NonNull == "" {
			m.NonNull = d
		}
		if nullable && m.Nullable == "" {
			m.Nullable = d
		}
	}
	return m
}

func (v Vocabulary) classify(level Level, descriptor string) (nonNull, nullable bool) {
	for _, k := range v.kinds {
		voc := k.vocabulary()
		if level == LevelParameter {
			for _, d := range voc.nonNull {
				if d == descriptor {
					nonNull = true
				}
			}
			for _, d := range voc.nullable {
				if d == descriptor {
					nullable = true
				}
			}
			continue
		}
		if voc.defaultNonNull != "" && voc.defaultNonNull == descriptor {
			nonNull = true
		}
		if voc.defaultNullable != "" && voc.defaultNullable == descriptor {
			nullable = true
		}
	}
	return nonNull, nullable
}
