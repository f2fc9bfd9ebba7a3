package model

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"nullguard/internal/classfile"
	"nullguard/internal/classpath"
	"nullguard/internal/diag"
	"nullguard/internal/nullness"
	"nullguard/internal/scope"
	"nullguard/internal/trace"
)

const enumClass = "java/lang/Enum"

var anonymousSuffix = regexp.MustCompile(`\$\d+$`)

// Builder builds class descriptors against a resolution context.
type Builder struct {
	cp     *classpath.Context
	scopes *scope.Reader
	rep    diag.Reporter
}

// NewBuilder returns a Builder. Structural anomalies go to rep.
func NewBuilder(cp *classpath.Context, scopes *scope.Reader, rep diag.Reporter) *Builder {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	return &Builder{cp: cp, scopes: scopes, rep: rep}
}

// Build describes cf. path only labels diagnostics. A nullness conflict on
// any scope is returned as *nullness.ConflictError.
func (b *Builder) Build(ctx context.Context, cf *classfile.ClassFile, path string) (*ClassDescriptor, error) {
	self, err := classpath.Summarize(cf)
	if err != nil {
		return nil, err
	}
	ctx, span := trace.Start(ctx, trace.ScopeClass, "describe")
	defer span.End(self.Name)

	// prefer the class path's view so module lookups use the right entry
	if s, ok, err := b.cp.Lookup(self.Name); err == nil && ok {
		self.Origin = s.Origin
	}
	loc := diag.Location{Path: path, Class: classfile.DottedName(self.Name)}

	c := &ClassDescriptor{
		Name:        self.Name,
		Major:       cf.Major,
		IsInterface: cf.Access&classfile.AccInterface != 0,
		IsRecord:    self.Super == recordClass,
		IsInner:     self.Nested,
	}
	c.IsEnum = cf.Access&classfile.AccEnum != 0 && self.Super == enumClass
	c.IsDerived = self.Super != "" && self.Super != classpath.ObjectClass && !c.IsEnum && !c.IsRecord
	c.IsStatic = self.Nested && self.Access&classfile.AccStatic != 0
	c.IsAnonymous = self.Anonymous || (self.Nested && self.Outer != "" && cf.Attribute(classfile.AttrEnclosingMethod) != nil && anonymousSuffix.MatchString(self.Name))
	c.IsLocal = self.Nested && !c.IsAnonymous && cf.Attribute(classfile.AttrEnclosingMethod) != nil
	c.InnerName = self.SimpleName
	c.IsPublicAPI = b.publicAPI(self, loc)

	chain, err := b.scopes.Enclosing(self)
	if err != nil {
		var unresolved *classpath.UnresolvedError
		if !errors.As(err, &unresolved) {
			return nil, err
		}
		diag.ReportWarning(b.rep, diag.StrUnresolvedSuper, loc, err.Error()).Emit()
	}
	if c.Nullness, err = nullness.Resolve(b.scopes.ClassScopes(chain)...); err != nil {
		return nil, err
	}
	c.AssertionsFlagOwner = b.assertionsFlagOwner(chain)

	var components []string
	if c.IsRecord {
		if components, err = recordComponents(cf); err != nil {
			return nil, fmt.Errorf("%s: Record: %w", self.Name, err)
		}
	}

	missingLocals := 0
	for i, m := range cf.Methods {
		bd, err := b.behavior(ctx, cf, c, m, i, components, loc)
		if err != nil {
			return nil, err
		}
		if bd == nil {
			continue
		}
		if bd.HasBody() && !bd.HasLocalVariables && len(bd.Parameters) > 0 {
			missingLocals++
		}
		c.Behaviors = append(c.Behaviors, bd)
	}
	sort.SliceStable(c.Behaviors, func(i, j int) bool { return c.Behaviors[i].Name < c.Behaviors[j].Name })

	if missingLocals > 0 {
		diag.ReportWarning(b.rep, diag.StrMissingLocalVars, loc,
			fmt.Sprintf("%d behavior(s) without LocalVariableTable; parameter names fall back to positions", missingLocals)).Emit()
	}
	return c, nil
}

// publicAPI reports whether the class or one of its superclasses below
// java/lang/Object is public.
func (b *Builder) publicAPI(self *classpath.Summary, loc diag.Location) bool {
	if self.IsPublic() {
		return true
	}
	if self.Super == "" || self.Super == classpath.ObjectClass {
		return false
	}
	chain, err := b.cp.SuperChain(self.Super)
	if err != nil {
		diag.ReportWarning(b.rep, diag.StrUnresolvedSuper, loc, err.Error()).Emit()
	}
	if super, ok, _ := b.cp.Lookup(self.Super); ok {
		chain = append([]*classpath.Summary{super}, chain...)
	}
	for _, s := range chain {
		if s.IsPublic() {
			return true
		}
	}
	return false
}

// assertionsFlagOwner searches the class, its member classes and then each
// enclosing class the same way for a $assertionsDisabled field.
func (b *Builder) assertionsFlagOwner(chain []*classpath.Summary) string {
	for _, s := range chain {
		if s.HasAssertionsFlag {
			return s.Name
		}
		for _, member := range s.Members {
			if ms, ok, err := b.cp.Lookup(member); err == nil && ok && ms.HasAssertionsFlag {
				return ms.Name
			}
		}
	}
	return ""
}
