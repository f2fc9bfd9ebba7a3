package patch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nullguard/internal/classfile"
	"nullguard/internal/config"
	"nullguard/internal/diag"
	"nullguard/internal/pipeline"
)

const (
	nullMarked   = "Lorg/jspecify/annotations/NullMarked;"
	nullUnmarked = "Lorg/jspecify/annotations/NullUnmarked;"
	nonNull      = "Lorg/jspecify/annotations/NonNull;"
	nullable     = "Lorg/jspecify/annotations/Nullable;"
	str          = "Ljava/lang/String;"
	object       = "Ljava/lang/Object;"
	opReturn     = 0xb1
	opAload2     = classfile.OpAload0 + 2
)

func writeClass(t *testing.T, root string, b *classfile.Builder) string {
	t.Helper()
	cf, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	name, err := cf.Name()
	if err != nil {
		t.Fatal(err)
	}
	data, err := cf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	rel := name + ".class"
	writeRaw(t, root, rel, data)
	return rel
}

func writeRaw(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readClass(t *testing.T, root, rel string) *classfile.ClassFile {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	return cf
}

func methodCode(t *testing.T, cf *classfile.ClassFile, name, desc string) *classfile.Code {
	t.Helper()
	m := cf.Method(name, desc)
	if m == nil {
		t.Fatalf("method %s%s not found", name, desc)
	}
	a := m.Attribute(cf.Pool, classfile.AttrCode)
	if a == nil {
		t.Fatalf("method %s%s has no code", name, desc)
	}
	code, err := classfile.ParseCode(a.Info)
	if err != nil {
		t.Fatal(err)
	}
	return code
}

func run(t *testing.T, input, output string, cfg config.Configuration) *Result {
	t.Helper()
	res, err := ProcessFolder(context.Background(), input, output, Options{Config: cfg, Version: "test"})
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	return res
}

// marked returns a public @NullMarked class with one public method taking a
// String and an int.
func marked(name string) *classfile.Builder {
	b := classfile.NewBuilder(name, "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
		Annotate(true, nullMarked)
	b.Method(classfile.AccPublic, "m", "("+str+"I)V").
		Code(1, 3, opReturn).
		Local("this", "L"+name+";", 0).
		Local("s", str, 1).
		Local("n", "I", 2)
	return b
}

func TestProcessFolderInjectsGuard(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	rel := writeClass(t, in, marked("p/A"))

	res := run(t, in, out, config.Standard)
	if !res.OK() {
		t.Fatalf("failures: %v", res.Failures)
	}
	if res.Patched != 1 || res.Unchanged != 0 {
		t.Fatalf("patched=%d unchanged=%d", res.Patched, res.Unchanged)
	}

	cf := readClass(t, out, rel)
	if v, ok := ProcessorVersion(cf); !ok || v != "test" {
		t.Errorf("ProcessorVersion = %q, %v", v, ok)
	}
	code := methodCode(t, cf, "m", "("+str+"I)V")
	// public API under the standard preset throws NullPointerException
	if len(code.Bytecode) != 17 {
		t.Fatalf("code length = %d, want 17", len(code.Bytecode))
	}
	want := []byte{classfile.OpNop, classfile.OpNop, classfile.OpAload1, classfile.OpIfnonnull, 0, 13}
	if !bytes.Equal(code.Bytecode[:6], want) {
		t.Errorf("prologue = % x, want % x", code.Bytecode[:6], want)
	}
	if code.Bytecode[16] != opReturn {
		t.Errorf("original body not preserved: % x", code.Bytecode)
	}
	if code.MaxStack < 3 {
		t.Errorf("max_stack = %d", code.MaxStack)
	}
	if len(res.Classes) != 1 || res.Classes[0].Stage != pipeline.StageWritten || res.Classes[0].Guards != 1 {
		t.Errorf("outcome = %+v", res.Classes)
	}
}

func TestProcessFolderIsIdempotent(t *testing.T) {
	in, first, second := t.TempDir(), t.TempDir(), t.TempDir()
	writeClass(t, in, marked("p/A"))
	writeClass(t, in, marked("p/B"))
	writeRaw(t, in, "p/messages.properties", []byte("k=v\n"))

	res1 := run(t, in, first, config.Standard)
	if res1.Patched != 2 || res1.Copied != 1 {
		t.Fatalf("first pass: patched=%d copied=%d", res1.Patched, res1.Copied)
	}
	res2 := run(t, first, second, config.Standard)
	if res2.Patched != 0 || res2.Unchanged != 2 {
		t.Fatalf("second pass: patched=%d unchanged=%d", res2.Patched, res2.Unchanged)
	}
	if n := countCode(res2.Diagnostics, diag.StrAlreadyInstrumented); n != 2 {
		t.Errorf("already-instrumented notices = %d, want 2", n)
	}
	for _, rel := range []string{"p/A.class", "p/B.class", "p/messages.properties"} {
		a, err := os.ReadFile(filepath.Join(first, rel))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(second, rel))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between passes", rel)
		}
	}
}

func countCode(bag *diag.Bag, code diag.Code) int {
	n := 0
	for _, d := range bag.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}

func TestNullableParameterOptsOut(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeClass(t, in, classfile.NewBuilder("p/package-info", "java/lang/Object", classfile.AccInterface|classfile.AccAbstract|classfile.AccSynthetic).
		Annotate(true, nullMarked))
	b := classfile.NewBuilder("p/S", "java/lang/Object", classfile.AccPublic|classfile.AccSuper)
	b.Method(classfile.AccPublic, "lenient", "("+str+")V").
		Code(1, 2, opReturn).
		Local("this", "Lp/S;", 0).
		Local("s", str, 1).
		ParameterAnnotations(true, []string{nullable})
	b.Method(classfile.AccPublic, "strict", "("+str+")V").
		Code(1, 2, opReturn).
		Local("this", "Lp/S;", 0).
		Local("s", str, 1)
	rel := writeClass(t, in, b)

	res := run(t, in, out, config.Standard)
	if res.Patched != 1 || res.Copied != 1 {
		t.Fatalf("patched=%d copied=%d", res.Patched, res.Copied)
	}
	cf := readClass(t, out, rel)
	if code := methodCode(t, cf, "lenient", "("+str+")V"); len(code.Bytecode) != 1 {
		t.Errorf("nullable parameter got a guard: % x", code.Bytecode)
	}
	if code := methodCode(t, cf, "strict", "("+str+")V"); len(code.Bytecode) != 17 {
		t.Errorf("strict method code length = %d, want 17", len(code.Bytecode))
	}
	pkg, err := os.ReadFile(filepath.Join(out, "p", "package-info.class"))
	if err != nil {
		t.Fatal(err)
	}
	orig, _ := os.ReadFile(filepath.Join(in, "p", "package-info.class"))
	if !bytes.Equal(pkg, orig) {
		t.Errorf("package-info was modified")
	}
}

func TestUnmarkedClassIsCopiedVerbatim(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	b := classfile.NewBuilder("p/Plain", "java/lang/Object", classfile.AccPublic|classfile.AccSuper)
	b.Method(classfile.AccPublic, "m", "("+str+")V").Code(1, 2, opReturn).Local("this", "Lp/Plain;", 0).Local("s", str, 1)
	rel := writeClass(t, in, b)

	res := run(t, in, out, config.Standard)
	if res.Unchanged != 1 || res.Patched != 0 {
		t.Fatalf("unchanged=%d patched=%d", res.Unchanged, res.Patched)
	}
	got, _ := os.ReadFile(filepath.Join(out, rel))
	want, _ := os.ReadFile(filepath.Join(in, rel))
	if !bytes.Equal(got, want) {
		t.Errorf("unmarked class was rewritten")
	}
}

func TestPrivateAPIUsesAssert(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	b := classfile.NewBuilder("p/Hidden", "java/lang/Object", classfile.AccSuper).
		Annotate(true, nullMarked).
		Field(classfile.AccStatic|classfile.AccFinal|classfile.AccSynthetic, "$assertionsDisabled", "Z")
	b.Method(classfile.AccPublic, "m", "("+str+")V").Code(1, 2, opReturn).Local("this", "Lp/Hidden;", 0).Local("s", str, 1)
	rel := writeClass(t, in, b)

	res := run(t, in, out, config.MustParse("publicApi=THROW_NPE:privateApi=ASSERT"))
	if res.Patched != 1 {
		t.Fatalf("patched = %d", res.Patched)
	}
	code := methodCode(t, readClass(t, out, rel), "m", "("+str+")V")
	if code.Bytecode[0] != classfile.OpGetstatic || code.Bytecode[3] != classfile.OpIfne {
		t.Errorf("expected $assertionsDisabled gate, got % x", code.Bytecode[:8])
	}
	if len(code.Bytecode) != 21 {
		t.Errorf("code length = %d, want 21", len(code.Bytecode))
	}
}

func TestNoChecksLeavesEverything(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeClass(t, in, marked("p/A"))
	res := run(t, in, out, config.NoChecks)
	if res.Patched != 0 || res.Unchanged != 1 {
		t.Fatalf("patched=%d unchanged=%d", res.Patched, res.Unchanged)
	}
}

func TestEnumConstructorSkew(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	desc := "(" + str + "I" + str + object + ")V"
	b := classfile.NewBuilder("p/E", "java/lang/Enum", classfile.AccPublic|classfile.AccFinal|classfile.AccSuper|classfile.AccEnum)
	// javac records annotations for the declared parameters only
	b.Method(classfile.AccPrivate, "<init>", desc).
		Code(1, 5, opReturn).
		Local("this", "Lp/E;", 0).
		Local("label", str, 3).
		Local("payload", object, 4).
		ParameterAnnotations(false, nil, []string{nonNull})
	rel := writeClass(t, in, b)

	res := run(t, in, out, config.Standard)
	if res.Patched != 1 {
		t.Fatalf("patched = %d, diagnostics %v", res.Patched, res.Diagnostics.Items())
	}
	if res.Classes[0].Guards != 1 {
		t.Fatalf("guards = %d, want 1", res.Classes[0].Guards)
	}
	code := methodCode(t, readClass(t, out, rel), "<init>", desc)
	if !bytes.Contains(code.Bytecode, []byte{classfile.OpAload, 4}) {
		t.Errorf("guard should load slot 4: % x", code.Bytecode)
	}
	if bytes.Contains(code.Bytecode, []byte{classfile.OpAload, 3}) {
		t.Errorf("unannotated label must not be guarded: % x", code.Bytecode)
	}
	if countCode(res.Diagnostics, diag.StrParameterSkew) != 0 {
		t.Errorf("javac enum skew must not warn")
	}
}

func TestConflictFailsOnlyThatClass(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	bad := classfile.NewBuilder("p/Bad", "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
		Annotate(true, nullMarked, nullUnmarked)
	bad.Method(classfile.AccPublic, "m", "("+str+")V").Code(1, 2, opReturn).Local("this", "Lp/Bad;", 0).Local("s", str, 1)
	badRel := writeClass(t, in, bad)
	writeClass(t, in, marked("p/Good"))

	res := run(t, in, out, config.Standard)
	if len(res.Failures) != 1 {
		t.Fatalf("failures = %v", res.Failures)
	}
	f := res.Failures[0]
	if f.Kind != FailureConflict || f.Path != badRel || f.Class != "p.Bad" {
		t.Errorf("failure = %+v", f)
	}
	var failure *Failure
	if !errors.As(error(f), &failure) {
		t.Errorf("Failure does not satisfy errors.As")
	}
	if _, err := os.Stat(filepath.Join(out, badRel)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("failed class must not be written: %v", err)
	}
	if res.Patched != 1 {
		t.Errorf("sibling class not patched: %d", res.Patched)
	}
	if res.Diagnostics.Count(diag.SevError) != 1 {
		t.Errorf("errors = %d", res.Diagnostics.Count(diag.SevError))
	}
}

func TestStructuralAnomaliesAreCopied(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	data, err := marked("p/A").Bytes()
	if err != nil {
		t.Fatal(err)
	}
	writeRaw(t, in, "p/Renamed.class", data)
	writeRaw(t, in, "META-INF/versions/11/p/A.class", data)
	writeRaw(t, in, "p/Broken.class", []byte{0xCA, 0xFE})
	writeRaw(t, in, "module-info.class", []byte("opaque"))

	res := run(t, in, out, config.Standard)
	if !res.OK() {
		t.Fatalf("failures: %v", res.Failures)
	}
	if res.Unchanged != 3 || res.Copied != 1 {
		t.Errorf("unchanged=%d copied=%d", res.Unchanged, res.Copied)
	}
	for _, code := range []diag.Code{diag.StrNameMismatch, diag.StrMalformedName, diag.StrUnparsableClass} {
		if countCode(res.Diagnostics, code) != 1 {
			t.Errorf("expected one %s diagnostic", code.ID())
		}
	}
	for _, rel := range []string{"p/Renamed.class", "META-INF/versions/11/p/A.class", "p/Broken.class", "module-info.class"} {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatal(err)
		}
		want, _ := os.ReadFile(filepath.Join(in, filepath.FromSlash(rel)))
		if !bytes.Equal(got, want) {
			t.Errorf("%s modified", rel)
		}
	}
}

func TestDecomposedFileNameMatchesClass(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	data, err := marked("p/Caf\u00e9").Bytes()
	if err != nil {
		t.Fatal(err)
	}
	rel := "p/Cafe\u0301.class"
	writeRaw(t, in, rel, data)

	res := run(t, in, out, config.Standard)
	if res.Patched != 1 {
		t.Fatalf("patched=%d unchanged=%d", res.Patched, res.Unchanged)
	}
	if countCode(res.Diagnostics, diag.StrNameMismatch)+countCode(res.Diagnostics, diag.StrMalformedName) != 0 {
		t.Error("decomposed file name reported as anomaly")
	}
	if cf := readClass(t, out, rel); !IsInstrumented(cf) {
		t.Error("output not marked")
	}
}

func TestNestedOutputIsSkipped(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(in, "instrumented")
	writeClass(t, in, marked("p/A"))

	run(t, in, out, config.Standard)
	res := run(t, in, out, config.Standard)
	if res.Patched != 1 || len(res.Classes) != 1 {
		t.Errorf("second pass saw its own output: patched=%d classes=%d", res.Patched, len(res.Classes))
	}
}

func TestProcessFolderRejectsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x")
	writeRaw(t, dir, "x", []byte("x"))
	_, err := ProcessFolder(context.Background(), file, t.TempDir(), Options{})
	if !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("err = %v, want ErrNotDirectory", err)
	}
	var fe *FolderError
	if !errors.As(err, &fe) || fe.Path != file {
		t.Errorf("err = %#v", err)
	}
	if _, err := ProcessFolder(context.Background(), filepath.Join(dir, "missing"), t.TempDir(), Options{}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("missing input: %v", err)
	}
}

func TestProgressEvents(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeClass(t, in, marked("p/A"))
	sink := &pipeline.RecordingSink{}
	_, err := ProcessFolder(context.Background(), in, out, Options{Config: config.Standard, Sink: sink})
	if err != nil {
		t.Fatal(err)
	}
	var stages []pipeline.Stage
	for _, ev := range sink.Events() {
		stages = append(stages, ev.Stage)
	}
	want := []pipeline.Stage{pipeline.StageDiscovered, pipeline.StageDescribed, pipeline.StageInstrumented, pipeline.StageWritten}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
}

func TestRecordCanonicalConstructorAndEquals(t *testing.T) {
	const (
		ctorDesc = "(" + str + "Ljava/lang/Integer;)V"
		eqDesc   = "(" + object + ")Z"
	)
	in, out := t.TempDir(), t.TempDir()
	pair := classfile.NewBuilder("p/Pair", "java/lang/Record", classfile.AccPublic|classfile.AccFinal|classfile.AccSuper).
		Annotate(true, nullMarked).
		Field(classfile.AccPrivate|classfile.AccFinal, "first", str).
		Field(classfile.AccPrivate|classfile.AccFinal, "second", "Ljava/lang/Integer;").
		RecordComponents([2]string{"first", str}, [2]string{"second", "Ljava/lang/Integer;"})
	indy := pair.InvokeDynamic("java/lang/runtime/ObjectMethods", "bootstrap",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/TypeDescriptor;Ljava/lang/Class;Ljava/lang/String;[Ljava/lang/invoke/MethodHandle;)Ljava/lang/Object;",
		"equals", "(Lp/Pair;Ljava/lang/Object;)Z")
	pair.Method(classfile.AccPublic, "<init>", ctorDesc).
		Code(1, 3, opReturn).
		Parameters(
			classfile.MethodParameterSpec{Name: "first", Access: classfile.AccMandated},
			classfile.MethodParameterSpec{Name: "second", Access: classfile.AccMandated},
		)
	pair.Method(classfile.AccPublic|classfile.AccFinal, "equals", eqDesc).
		Code(2, 2, classfile.OpAload0, classfile.OpAload1, classfile.OpInvokedynamic, byte(indy>>8), byte(indy), 0, 0, classfile.OpIreturn).
		Local("this", "Lp/Pair;", 0).
		Local("o", object, 1)
	rel := writeClass(t, in, pair)

	res := run(t, in, out, config.Standard)
	if !res.OK() || res.Patched != 1 {
		t.Fatalf("patched=%d failures=%v", res.Patched, res.Failures)
	}
	if res.Classes[0].Guards != 2 {
		t.Errorf("guards = %d, want 2", res.Classes[0].Guards)
	}
	cf := readClass(t, out, rel)
	ctor := methodCode(t, cf, "<init>", ctorDesc)
	// two 14-byte guards need no padding
	if len(ctor.Bytecode) != 29 || ctor.Bytecode[0] != classfile.OpAload1 || ctor.Bytecode[14] != opAload2 {
		t.Errorf("canonical constructor prologue: % x", ctor.Bytecode)
	}
	if eq := methodCode(t, cf, "equals", eqDesc); len(eq.Bytecode) != 8 {
		t.Errorf("record equals got a guard: % x", eq.Bytecode)
	}
}

func TestInnerClassConstructorSkipsOuterInstance(t *testing.T) {
	const desc = "(Lp/Outer;" + str + ")V"
	in, out := t.TempDir(), t.TempDir()
	writeClass(t, in, classfile.NewBuilder("p/Outer", "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
		Annotate(true, nullMarked).
		InnerClass("p/Outer$Inner", "p/Outer", "Inner", classfile.AccPublic))
	inner := classfile.NewBuilder("p/Outer$Inner", "java/lang/Object", classfile.AccPublic|classfile.AccSuper).
		InnerClass("p/Outer$Inner", "p/Outer", "Inner", classfile.AccPublic)
	inner.Method(classfile.AccPublic, "<init>", desc).
		Code(1, 3, opReturn).
		Local("this", "Lp/Outer$Inner;", 0).
		Local("this$0", "Lp/Outer;", 1).
		Local("text", str, 2)
	rel := writeClass(t, in, inner)

	res := run(t, in, out, config.Standard)
	if res.Patched != 1 || res.Unchanged != 1 {
		t.Fatalf("patched=%d unchanged=%d", res.Patched, res.Unchanged)
	}
	code := methodCode(t, readClass(t, out, rel), "<init>", desc)
	if len(code.Bytecode) != 17 || code.Bytecode[2] != opAload2 {
		t.Errorf("guard should load slot 2 only: % x", code.Bytecode)
	}
	if bytes.Contains(code.Bytecode[:16], []byte{classfile.OpAload1, classfile.OpIfnonnull}) {
		t.Errorf("outer instance was guarded: % x", code.Bytecode)
	}
}

func TestAssertAlwaysThrowsAssertionError(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	rel := writeClass(t, in, marked("p/A"))

	res := run(t, in, out, config.Development)
	if res.Patched != 1 {
		t.Fatalf("patched = %d", res.Patched)
	}
	cf := readClass(t, out, rel)
	code := methodCode(t, cf, "m", "("+str+"I)V")
	if len(code.Bytecode) != 17 || code.Bytecode[2] != classfile.OpAload1 || code.Bytecode[6] != classfile.OpNew {
		t.Fatalf("prologue = % x", code.Bytecode)
	}
	if bytes.Contains(code.Bytecode, []byte{classfile.OpGetstatic}) {
		t.Errorf("ASSERT_ALWAYS must not consult the assertion status: % x", code.Bytecode)
	}
	cls, err := cf.Pool.ClassName(uint16(code.Bytecode[7])<<8 | uint16(code.Bytecode[8]))
	if err != nil {
		t.Fatal(err)
	}
	if cls != "java/lang/AssertionError" {
		t.Errorf("thrown class = %s", cls)
	}
}
