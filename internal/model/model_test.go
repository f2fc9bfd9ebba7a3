package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nullguard/internal/classfile"
	"nullguard/internal/classpath"
	"nullguard/internal/diag"
	"nullguard/internal/nullness"
	"nullguard/internal/scope"
)

const (
	nullMarked = "Lorg/jspecify/annotations/NullMarked;"
	nonNull    = "Lorg/jspecify/annotations/NonNull;"
	nullable   = "Lorg/jspecify/annotations/Nullable;"
	object     = "Ljava/lang/Object;"
	str        = "Ljava/lang/String;"
)

type fixture struct {
	t    *testing.T
	root string
	bag  *diag.Bag
	cp   *classpath.Context
}

func newFixture(t *testing.T, classes ...*classfile.Builder) *fixture {
	t.Helper()
	f := &fixture{t: t, root: t.TempDir(), bag: diag.NewBag(100)}
	for _, b := range classes {
		f.write(b)
	}
	cp, err := classpath.Open(context.Background(), []string{f.root}, classpath.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cp.Close() })
	f.cp = cp
	return f
}

func (f *fixture) write(b *classfile.Builder) {
	f.t.Helper()
	cf, err := b.Build()
	if err != nil {
		f.t.Fatal(err)
	}
	name, _ := cf.Name()
	data, err := cf.Bytes()
	if err != nil {
		f.t.Fatal(err)
	}
	p := filepath.Join(f.root, filepath.FromSlash(name)+".class")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		f.t.Fatal(err)
	}
}

func (f *fixture) describe(name string) (*ClassDescriptor, error) {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(name)+".class"))
	if err != nil {
		f.t.Fatal(err)
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		f.t.Fatal(err)
	}
	b := NewBuilder(f.cp, scope.NewReader(f.cp, nullness.NewVocabulary()), diag.BagReporter{Bag: f.bag})
	return b.Build(context.Background(), cf, name+".class")
}

func (f *fixture) mustDescribe(name string) *ClassDescriptor {
	f.t.Helper()
	c, err := f.describe(name)
	if err != nil {
		f.t.Fatal(err)
	}
	return c
}

func behavior(t *testing.T, c *ClassDescriptor, name, desc string) *BehaviorDescriptor {
	t.Helper()
	for _, b := range c.Behaviors {
		if b.Name == name && b.Descriptor == desc {
			return b
		}
	}
	t.Fatalf("%s has no behavior %s%s", c.Name, name, desc)
	return nil
}

func TestEnumConstructorSkew(t *testing.T) {
	cases := []struct {
		major      uint16
		desc, anns int
		skew       int
		ok         bool
	}{
		{classfile.MajorJava5, 4, 2, 2, true},
		{61, 2, 0, 2, true},
		{61, 4, 4, 0, false},
		{61, 4, 3, 0, false},
		{48, 4, 2, 0, false},
		{61, 1, 0, 0, false},
	}
	for _, tc := range cases {
		skew, ok := enumConstructorSkew(tc.major, tc.desc, tc.anns)
		if skew != tc.skew || ok != tc.ok {
			t.Errorf("enumConstructorSkew(%d, %d, %d) = %d, %v; want %d, %v", tc.major, tc.desc, tc.anns, skew, ok, tc.skew, tc.ok)
		}
	}
}

func TestEnumConstructorParameters(t *testing.T) {
	const desc = "(Ljava/lang/String;ILjava/lang/String;Ljava/lang/Object;)V"
	color := classfile.NewBuilder("p/Color", "java/lang/Enum", classfile.AccPublic|classfile.AccFinal|classfile.AccSuper|classfile.AccEnum)
	color.Method(classfile.AccPrivate, "<init>", desc).
		Code(3, 5, classfile.OpReturn).
		Local("this", "Lp/Color;", 0).
		Local("label", str, 3).
		Local("extra", object, 4).
		ParameterAnnotations(true, nil, []string{nonNull})
	f := newFixture(t, color)

	c := f.mustDescribe("p/Color")
	if !c.IsEnum || c.IsDerived {
		t.Fatalf("flags: %+v", c)
	}
	ctor := behavior(t, c, "<init>", desc)
	if len(ctor.Parameters) != 4 {
		t.Fatalf("want 4 parameters, got %d", len(ctor.Parameters))
	}
	for _, p := range ctor.Parameters[:2] {
		if !p.IsSynthetic || p.Declared != -1 {
			t.Errorf("parameter %d should be synthetic: %+v", p.Index, p)
		}
	}
	label, extra := ctor.Parameters[2], ctor.Parameters[3]
	if label.Name != "label" || label.Slot != 3 || label.Declared != 0 || label.Nullness != nullness.NoChange {
		t.Errorf("label: %+v", label)
	}
	if extra.Name != "extra" || extra.Slot != 4 || extra.Nullness != nullness.MinusNull {
		t.Errorf("extra: %+v", extra)
	}
	if f.bag.Count(diag.SevWarning) != 0 {
		t.Errorf("unexpected warnings: %v", f.bag.Items())
	}
}

func TestInnerClassConstructor(t *testing.T) {
	const desc = "(Lp/Outer;Ljava/lang/String;J)V"
	outer := classfile.NewBuilder("p/Outer", classpath.ObjectClass, classfile.AccPublic|classfile.AccSuper).
		InnerClass("p/Outer$Inner", "p/Outer", "Inner", classfile.AccPublic)
	inner := classfile.NewBuilder("p/Outer$Inner", classpath.ObjectClass, classfile.AccPublic|classfile.AccSuper).
		InnerClass("p/Outer$Inner", "p/Outer", "Inner", classfile.AccPublic)
	inner.Method(classfile.AccPublic, "<init>", desc).
		Code(3, 5, classfile.OpReturn).
		Local("this", "Lp/Outer$Inner;", 0).
		Local("text", str, 2).
		Local("count", "J", 3).
		ParameterAnnotations(false, []string{nonNull}, nil)
	f := newFixture(t, outer, inner)

	c := f.mustDescribe("p/Outer$Inner")
	if !c.IsInner || c.IsStatic || c.IsAnonymous || !c.IsPublicAPI {
		t.Fatalf("flags: %+v", c)
	}
	ctor := behavior(t, c, "<init>", desc)
	if ctor.DisplayName() != "Inner" || c.SimpleName() != "Inner" {
		t.Errorf("constructor display name %q, class simple name %q", ctor.DisplayName(), c.SimpleName())
	}
	outerParam, text, count := ctor.Parameters[0], ctor.Parameters[1], ctor.Parameters[2]
	if !outerParam.IsSynthetic || outerParam.Slot != 1 {
		t.Errorf("outer instance: %+v", outerParam)
	}
	if text.Nullness != nullness.MinusNull || text.Slot != 2 || text.Name != "text" {
		t.Errorf("text: %+v", text)
	}
	if !count.IsPrimitive || count.Slot != 3 {
		t.Errorf("count: %+v", count)
	}
}

func TestMethodParametersMarkSynthetic(t *testing.T) {
	const desc = "(Lp/Outer;Ljava/lang/String;)V"
	outer := classfile.NewBuilder("p/Outer", classpath.ObjectClass, classfile.AccPublic)
	inner := classfile.NewBuilder("p/Outer$Inner", classpath.ObjectClass, 0).
		InnerClass("p/Outer$Inner", "p/Outer", "Inner", 0)
	inner.Method(0, "<init>", desc).
		Code(2, 3, classfile.OpReturn).
		Parameters(
			classfile.MethodParameterSpec{Name: "this$0", Access: classfile.AccFinal | classfile.AccMandated},
			classfile.MethodParameterSpec{Name: "value"},
		)
	f := newFixture(t, outer, inner)

	c := f.mustDescribe("p/Outer$Inner")
	ctor := behavior(t, c, "<init>", desc)
	if !ctor.Parameters[0].IsSynthetic || ctor.Parameters[1].IsSynthetic {
		t.Fatalf("synthetic flags: %+v %+v", ctor.Parameters[0], ctor.Parameters[1])
	}
	if ctor.Parameters[1].Name != "value" {
		t.Errorf("MethodParameters name should win, got %q", ctor.Parameters[1].Name)
	}
	if ctor.HasLocalVariables {
		t.Error("no LocalVariableTable was written")
	}
	if f.bag.Count(diag.SevWarning) != 1 || f.bag.Items()[0].Code != diag.StrMissingLocalVars {
		t.Errorf("want one missing-locals warning, got %v", f.bag.Items())
	}
}

func TestRecord(t *testing.T) {
	const ctorDesc = "(Ljava/lang/String;Ljava/lang/Integer;)V"
	pair := classfile.NewBuilder("p/Pair", "java/lang/Record", classfile.AccPublic|classfile.AccFinal|classfile.AccSuper).
		Annotate(true, nullMarked).
		Field(classfile.AccPrivate|classfile.AccFinal, "first", str).
		Field(classfile.AccPrivate|classfile.AccFinal, "second", "Ljava/lang/Integer;").
		RecordComponents([2]string{"first", str}, [2]string{"second", "Ljava/lang/Integer;"})
	indy := pair.InvokeDynamic("java/lang/runtime/ObjectMethods", "bootstrap",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/TypeDescriptor;Ljava/lang/Class;Ljava/lang/String;[Ljava/lang/invoke/MethodHandle;)Ljava/lang/Object;",
		"equals", "(Lp/Pair;Ljava/lang/Object;)Z")
	pair.Method(classfile.AccPublic, "<init>", ctorDesc).
		Code(2, 3, classfile.OpReturn).
		Parameters(
			classfile.MethodParameterSpec{Name: "first", Access: classfile.AccMandated},
			classfile.MethodParameterSpec{Name: "second", Access: classfile.AccMandated},
		)
	pair.Method(classfile.AccPublic, "<init>", "(Ljava/lang/String;)V").
		Code(2, 2, classfile.OpReturn).
		Local("first", str, 1)
	pair.Method(classfile.AccPublic|classfile.AccFinal, "equals", equalsDescriptor).
		Code(2, 2, classfile.OpAload0, classfile.OpAload1, classfile.OpInvokedynamic, byte(indy>>8), byte(indy), 0, 0, classfile.OpIreturn).
		Local("o", object, 1)
	f := newFixture(t, pair)

	c := f.mustDescribe("p/Pair")
	if !c.IsRecord || c.IsDerived || c.Nullness != nullness.MinusNull {
		t.Fatalf("flags: %+v", c)
	}
	canonical := behavior(t, c, "<init>", ctorDesc)
	if !canonical.IsCanonicalRecordConstructor {
		t.Fatal("canonical constructor not detected")
	}
	for _, p := range canonical.Parameters {
		if p.IsSynthetic || p.Nullness != nullness.MinusNull {
			t.Errorf("component parameter %+v", p)
		}
	}
	if other := behavior(t, c, "<init>", "(Ljava/lang/String;)V"); other.IsCanonicalRecordConstructor {
		t.Error("non-canonical constructor flagged")
	}
	if eq := behavior(t, c, "equals", equalsDescriptor); !eq.IsRecordEquals {
		t.Error("generated equals not detected")
	}
}

func TestAnonymousAndPublicAPI(t *testing.T) {
	base := classfile.NewBuilder("p/Base", classpath.ObjectClass, classfile.AccPublic|classfile.AccAbstract)
	hidden := classfile.NewBuilder("p/Hidden", "p/Base", 0)
	lonely := classfile.NewBuilder("p/Lonely", classpath.ObjectClass, 0)
	host := classfile.NewBuilder("p/Host", classpath.ObjectClass, classfile.AccPublic).
		InnerClass("p/Host$1", "", "", 0)
	anon := classfile.NewBuilder("p/Host$1", "p/Base", 0).
		InnerClass("p/Host$1", "", "", 0).
		EnclosingMethod("p/Host")
	anon.Method(0, "<init>", "(Lp/Host;)V").Code(1, 2, classfile.OpReturn)
	f := newFixture(t, base, hidden, lonely, host, anon)

	if c := f.mustDescribe("p/Hidden"); !c.IsPublicAPI || !c.IsDerived {
		t.Errorf("p/Hidden: %+v", c)
	}
	if c := f.mustDescribe("p/Lonely"); c.IsPublicAPI {
		t.Errorf("p/Lonely: %+v", c)
	}
	c := f.mustDescribe("p/Host$1")
	if !c.IsAnonymous || !c.IsInner || c.IsLocal {
		t.Errorf("p/Host$1: %+v", c)
	}
	if c.SimpleName() != "Host$1" {
		t.Errorf("anonymous simple name %q", c.SimpleName())
	}
}

func TestBehaviorOrderAndPlaceholders(t *testing.T) {
	b := classfile.NewBuilder("p/A", classpath.ObjectClass, classfile.AccPublic)
	b.Method(classfile.AccPublic, "zeta", "()V").Code(0, 1, classfile.OpReturn)
	b.Method(classfile.AccPublic|classfile.AccStatic, "alpha", "(Ljava/lang/String;I)V").Code(0, 2, classfile.OpReturn)
	b.Method(classfile.AccPublic, "<init>", "()V").Code(1, 1, classfile.OpReturn)
	b.Method(classfile.AccStatic, "<clinit>", "()V").Code(0, 0, classfile.OpReturn)
	f := newFixture(t, b)

	c := f.mustDescribe("p/A")
	var names []string
	for _, bd := range c.Behaviors {
		names = append(names, bd.Name)
	}
	want := []string{"<init>", "alpha", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("behaviors %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("behaviors %v, want %v", names, want)
		}
	}
	alpha := behavior(t, c, "alpha", "(Ljava/lang/String;I)V")
	if alpha.Parameters[0].Name != "arg#1" || alpha.Parameters[0].Slot != 0 || alpha.Parameters[1].Name != "arg#2" {
		t.Errorf("placeholders: %+v %+v", alpha.Parameters[0], alpha.Parameters[1])
	}
	if alpha.Signature != "void p.A.alpha(java.lang.String, int)" {
		t.Errorf("signature %q", alpha.Signature)
	}
}

func TestParameterConflict(t *testing.T) {
	b := classfile.NewBuilder("p/A", classpath.ObjectClass, classfile.AccPublic)
	b.Method(classfile.AccPublic, "m", "(Ljava/lang/Object;)V").
		Code(0, 2, classfile.OpReturn).
		Local("o", object, 1).
		ParameterAnnotations(true, []string{nonNull, nullable})
	f := newFixture(t, b)

	_, err := f.describe("p/A")
	var conflict *nullness.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if conflict.Level != nullness.LevelParameter {
		t.Errorf("level %v", conflict.Level)
	}
}

func TestLocalClassCapturedVariables(t *testing.T) {
	const (
		desc          = "(Lp/A;Ljava/lang/String;Ljava/lang/String;)V"
		cabeNullable  = "Lcom/dua3/cabe/annotations/Nullable;"
		localClass    = "p/A$1L"
		localClassRef = "Lp/A$1L;"
	)
	for _, withLocals := range []bool{true, false} {
		host := classfile.NewBuilder("p/A", classpath.ObjectClass, classfile.AccPublic|classfile.AccSuper).
			Annotate(true, nullMarked).
			InnerClass(localClass, "", "L", 0)
		local := classfile.NewBuilder(localClass, classpath.ObjectClass, classfile.AccSuper).
			InnerClass(localClass, "", "L", 0).
			EnclosingMethod("p/A")
		ctor := local.Method(0, "<init>", desc).
			Code(1, 4, classfile.OpReturn).
			ParameterAnnotations(false, []string{cabeNullable})
		if withLocals {
			ctor.Local("this", localClassRef, 0).
				Local("this$0", "Lp/A;", 1).
				Local("a", str, 2).
				Local("val$x", str, 3)
		}
		f := newFixture(t, host, local)

		c := f.mustDescribe(localClass)
		if !c.IsLocal || c.IsAnonymous || c.SimpleName() != "L" {
			t.Fatalf("withLocals=%v: flags %+v, simple name %q", withLocals, c, c.SimpleName())
		}
		bd := behavior(t, c, "<init>", desc)
		if bd.DisplayName() != "L" {
			t.Errorf("constructor display name %q", bd.DisplayName())
		}
		outer, a, captured := bd.Parameters[0], bd.Parameters[1], bd.Parameters[2]
		if !outer.IsSynthetic || !captured.IsSynthetic {
			t.Errorf("withLocals=%v: outer %+v, captured %+v should be synthetic", withLocals, outer, captured)
		}
		if a.IsSynthetic || a.Declared != 0 || a.Nullness != nullness.UnionNull {
			t.Errorf("withLocals=%v: declared @Nullable parameter %+v", withLocals, a)
		}
		if n := countWarnings(f.bag, diag.StrParameterSkew); n != 0 {
			t.Errorf("withLocals=%v: %d parameter skew warnings", withLocals, n)
		}
	}
}

func TestStaticContextLocalClassKeepsFirstParameter(t *testing.T) {
	const desc = "(Lp/B;)V"
	host := classfile.NewBuilder("p/B", classpath.ObjectClass, classfile.AccPublic|classfile.AccSuper).
		Annotate(true, nullMarked).
		InnerClass("p/B$1L", "", "L", 0)
	local := classfile.NewBuilder("p/B$1L", classpath.ObjectClass, classfile.AccSuper).
		InnerClass("p/B$1L", "", "L", 0).
		EnclosingMethod("p/B")
	local.Method(0, "<init>", desc).
		Code(1, 2, classfile.OpReturn).
		Local("this", "Lp/B$1L;", 0).
		Local("other", "Lp/B;", 1)
	f := newFixture(t, host, local)

	bd := behavior(t, f.mustDescribe("p/B$1L"), "<init>", desc)
	other := bd.Parameters[0]
	if other.IsSynthetic || other.Name != "other" || other.Nullness != nullness.MinusNull {
		t.Errorf("declared parameter of the enclosing type: %+v", other)
	}
}

func countWarnings(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}
