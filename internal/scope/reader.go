// Package scope reads nullness markers from the five nested scopes of a
// parameter: module, package, class (with its enclosing classes), method and
// the parameter itself.
package scope

import (
	"fmt"

	"nullguard/internal/classfile"
	"nullguard/internal/classpath"
	"nullguard/internal/nullness"
)

// maxNesting bounds the enclosing class walk.
const maxNesting = 64

// Reader reads markers through a resolution context.
type Reader struct {
	cp  *classpath.Context
	voc nullness.Vocabulary
}

// NewReader returns a Reader recognising the markers of voc.
func NewReader(cp *classpath.Context, voc nullness.Vocabulary) *Reader {
	return &Reader{cp: cp, voc: voc}
}

// Vocabulary returns the marker vocabulary in use.
func (r *Reader) Vocabulary() nullness.Vocabulary {
	return r.voc
}

// Module returns the markers on the module-info next to s.
func (r *Reader) Module(s *classpath.Summary) (nullness.Markers, error) {
	m, ok, err := r.cp.Module(s)
	if err != nil || !ok {
		return nullness.Markers{}, err
	}
	return r.voc.Scan(nullness.LevelModule, m.Annotations), nil
}

// Package returns the markers on the package-info of an internal package name.
func (r *Reader) Package(pkg string) (nullness.Markers, error) {
	p, ok, err := r.cp.Package(pkg)
	if err != nil || !ok {
		return nullness.Markers{}, err
	}
	return r.voc.Scan(nullness.LevelPackage, p.Annotations), nil
}

// Class returns the markers declared on s itself.
func (r *Reader) Class(s *classpath.Summary) nullness.Markers {
	return r.voc.Scan(nullness.LevelClass, s.Annotations)
}

// Enclosing returns s followed by its enclosing classes, innermost first. An
// enclosing class missing from the class path ends the walk with an
// *classpath.UnresolvedError next to the partial chain.
func (r *Reader) Enclosing(s *classpath.Summary) ([]*classpath.Summary, error) {
	chain := []*classpath.Summary{s}
	for cur := s; cur.Outer != ""; {
		if len(chain) >= maxNesting {
			return chain, fmt.Errorf("%s: nesting deeper than %d", s.Name, maxNesting)
		}
		outer, ok, err := r.cp.Lookup(cur.Outer)
		if err != nil {
			return chain, err
		}
		if !ok {
			return chain, &classpath.UnresolvedError{Name: cur.Outer, From: cur.Name}
		}
		chain = append(chain, outer)
		cur = outer
	}
	return chain, nil
}

// ClassScopes returns the lazily evaluated scopes enclosing the members of a
// class, innermost first: the enclosing chain, the package, the module.
func (r *Reader) ClassScopes(chain []*classpath.Summary) []nullness.ScopeFunc {
	if len(chain) == 0 {
		return nil
	}
	scopes := make([]nullness.ScopeFunc, 0, len(chain)+2)
	for _, s := range chain {
		scopes = append(scopes, func() (nullness.Operator, error) {
			return r.Class(s).Operator(nullness.LevelClass, classfile.DottedName(s.Name))
		})
	}
	top := chain[0]
	pkg := top.Package()
	scopes = append(scopes,
		func() (nullness.Operator, error) {
			m, err := r.Package(pkg)
			if err != nil {
				return nullness.Unspecified, err
			}
			return m.Operator(nullness.LevelPackage, classfile.DottedName(pkg))
		},
		func() (nullness.Operator, error) {
			m, err := r.Module(top)
			if err != nil {
				return nullness.Unspecified, err
			}
			return m.Operator(nullness.LevelModule, "module of "+classfile.DottedName(top.Name))
		},
	)
	return scopes
}

// Method returns the markers on a method or constructor.
func (r *Reader) Method(p *classfile.Pool, m *classfile.Member) (nullness.Markers, error) {
	var out nullness.Markers
	for _, name := range []string{classfile.AttrRuntimeVisibleAnnotations, classfile.AttrRuntimeInvisibleAnnotations} {
		a := m.Attribute(p, name)
		if a == nil {
			continue
		}
		anns, err := classfile.ParseAnnotations(a.Info)
		if err != nil {
			return nullness.Markers{}, fmt.Errorf("%s: %w", name, err)
		}
		descs, err := descriptors(p, anns)
		if err != nil {
			return nullness.Markers{}, err
		}
		out = out.Merge(r.voc.Scan(nullness.LevelMethod, descs))
	}
	return out, nil
}

// Parameters holds parameter markers indexed the way the class file indexes
// them. Count is the largest num_parameters of the parameter annotation
// tables, or -1 when the method has none.
type Parameters struct {
	Count  int
	byDecl map[int]nullness.Markers
	byType map[int]nullness.Markers
}

// Declaration returns the markers of parameter annotation table entry i.
func (ps Parameters) Declaration(i int) nullness.Markers {
	return ps.byDecl[i]
}

// Typed returns the markers of type annotations on formal parameter i.
func (ps Parameters) Typed(i int) nullness.Markers {
	return ps.byType[i]
}

// Parameters collects markers from parameter annotations and from
// formal_parameter type annotations whose type path is empty or only
// descends into nested types.
func (r *Reader) Parameters(p *classfile.Pool, m *classfile.Member) (Parameters, error) {
	ps := Parameters{Count: -1, byDecl: map[int]nullness.Markers{}, byType: map[int]nullness.Markers{}}
	for _, name := range []string{classfile.AttrRuntimeVisibleParameterAnnotations, classfile.AttrRuntimeInvisibleParameterAnnotations} {
		a := m.Attribute(p, name)
		if a == nil {
			continue
		}
		table, err := classfile.ParseParameterAnnotations(a.Info)
		if err != nil {
			return ps, fmt.Errorf("%s: %w", name, err)
		}
		ps.Count = max(ps.Count, len(table))
		for i, anns := range table {
			descs, err := descriptors(p, anns)
			if err != nil {
				return ps, err
			}
			ps.byDecl[i] = ps.byDecl[i].Merge(r.voc.Scan(nullness.LevelParameter, descs))
		}
	}
	for _, name := range []string{classfile.AttrRuntimeVisibleTypeAnnotations, classfile.AttrRuntimeInvisibleTypeAnnotations} {
		a := m.Attribute(p, name)
		if a == nil {
			continue
		}
		anns, err := classfile.ParseTypeAnnotations(a.Info)
		if err != nil {
			return ps, fmt.Errorf("%s: %w", name, err)
		}
		for i := range anns {
			ta := &anns[i]
			if ta.TargetType != classfile.TargetFormalParameter || !outermostType(ta) {
				continue
			}
			d, err := ta.Type(p)
			if err != nil {
				return ps, err
			}
			idx := int(ta.Index)
			ps.byType[idx] = ps.byType[idx].Merge(r.voc.Scan(nullness.LevelParameter, []string{d}))
		}
	}
	return ps, nil
}

// outermostType reports whether a type annotation applies to the parameter's
// own type rather than to an array component or type argument.
func outermostType(ta *classfile.TypeAnnotation) bool {
	for _, k := range ta.TypePathKinds() {
		if k != classfile.PathNested {
			return false
		}
	}
	return true
}

func descriptors(p *classfile.Pool, anns []classfile.Annotation) ([]string, error) {
	out := make([]string, 0, len(anns))
	for i := range anns {
		d, err := anns[i].Type(p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
