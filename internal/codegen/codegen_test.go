package codegen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nullguard/internal/classfile"
	"nullguard/internal/config"
)

func TestAssembleThrowNPE(t *testing.T) {
	pool := classfile.NewPool()
	pro, err := Assemble(pool, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.ThrowNPE}})
	require.NoError(t, err)
	require.Len(t, pro.Code, 16)
	require.Equal(t, []int{16}, pro.Targets)
	require.Equal(t, []byte{classfile.OpNop, classfile.OpNop, classfile.OpAload0 + 1, classfile.OpIfnonnull, 0, 13}, pro.Code[:6])
	require.Equal(t, classfile.OpNew, pro.Code[6])
	require.Equal(t, classfile.OpAthrow, pro.Code[15])

	listing, err := classfile.Disassemble(pool, pro.Code)
	require.NoError(t, err)
	require.Contains(t, listing, "java/lang/NullPointerException")
	require.Contains(t, listing, "s is null")
}

func TestAssembleAssertVariants(t *testing.T) {
	pool := classfile.NewPool()
	withFlag, err := Assemble(pool, Target{Owner: "p/A", AssertionsFlagOwner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.Assert}})
	require.NoError(t, err)
	require.Len(t, withFlag.Code, 20)
	require.Equal(t, classfile.OpGetstatic, withFlag.Code[0])
	require.Equal(t, classfile.OpIfne, withFlag.Code[3])
	require.Equal(t, []int{20}, withFlag.Targets)

	withoutFlag, err := Assemble(pool, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.Assert}})
	require.NoError(t, err)
	require.Len(t, withoutFlag.Code, 24)
	listing, err := classfile.Disassemble(pool, withoutFlag.Code)
	require.NoError(t, err)
	require.Contains(t, listing, "desiredAssertionStatus")
	require.Contains(t, listing, "java/lang/AssertionError")

	always, err := Assemble(pool, Target{Owner: "p/A", AssertionsFlagOwner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.AssertAlways}})
	require.NoError(t, err)
	require.Equal(t, classfile.OpAload0+1, always.Code[2], "no assertion gate")
}

func TestAssembleSeveralGuards(t *testing.T) {
	pool := classfile.NewPool()
	pro, err := Assemble(pool, Target{Owner: "p/A"}, []Guard{
		{Slot: 1, Name: "a", Check: config.ThrowNPE},
		{Slot: 2, Name: "b", Check: config.NoCheck},
		{Slot: 300, Name: "c", Check: config.ThrowNPE},
	})
	require.NoError(t, err)
	require.Len(t, pro.Targets, 2)
	require.Less(t, pro.Targets[0], pro.Targets[1])
	require.Equal(t, len(pro.Code), pro.Targets[1])
	require.Zero(t, len(pro.Code)%4)

	_, err = Assemble(pool, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "a", Check: config.NoCheck}})
	require.ErrorIs(t, err, ErrNoGuards)
}

func method(t *testing.T, data []byte, name, desc string) (*classfile.ClassFile, *classfile.Member, *classfile.Code) {
	t.Helper()
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	m := cf.Method(name, desc)
	require.NotNil(t, m)
	code, err := classfile.ParseCode(m.Attribute(cf.Pool, classfile.AttrCode).Info)
	require.NoError(t, err)
	return cf, m, code
}

func codeAttr(t *testing.T, cf *classfile.ClassFile, code *classfile.Code, name string) []byte {
	t.Helper()
	a := classfile.FindAttribute(cf.Pool, code.Attributes, name)
	require.NotNil(t, a, name)
	return a.Info
}

func TestInjectRelocates(t *testing.T) {
	const desc = "(Ljava/lang/Object;)I"
	body := []byte{
		classfile.OpAload0,
		classfile.OpIfnull, 0, 5,
		0x04, // iconst_1
		classfile.OpIreturn,
		0x03, // iconst_0
		classfile.OpIreturn,
	}
	b := classfile.NewBuilder("p/A", "java/lang/Object", classfile.AccPublic)
	b.Method(classfile.AccPublic|classfile.AccStatic, "m", desc).
		Code(1, 2, body...).
		Exception(classfile.ExceptionEntry{StartPC: 0, EndPC: 4, HandlerPC: 6}).
		Local("o", "Ljava/lang/Object;", 0).
		LocalRange("tmp", "I", 1, 4, 2).
		Lines(classfile.LineNumber{StartPC: 0, Line: 10}, classfile.LineNumber{StartPC: 6, Line: 12}).
		Frames(classfile.SameFrame(6))
	data, err := b.Bytes()
	require.NoError(t, err)

	cf, m, _ := method(t, data, "m", desc)
	res, err := Inject(cf, m, Target{Owner: "p/A"}, []Guard{{Slot: 0, Name: "o", Check: config.ThrowNPE}})
	require.NoError(t, err)
	require.Len(t, res.Prologue.Code, 16)
	require.Equal(t, uint16(1), res.MaxStackWas)

	out, err := cf.Bytes()
	require.NoError(t, err)
	cf, _, code := method(t, out, "m", desc)
	require.Equal(t, uint16(3), code.MaxStack)
	require.Equal(t, body, code.Bytecode[16:])
	require.Equal(t, []classfile.ExceptionEntry{{StartPC: 16, EndPC: 20, HandlerPC: 22}}, code.Exceptions)

	lines, err := classfile.ParseLineNumberTable(codeAttr(t, cf, code, classfile.AttrLineNumberTable))
	require.NoError(t, err)
	require.Equal(t, []classfile.LineNumber{{StartPC: 0, Line: 10}, {StartPC: 22, Line: 12}}, lines)

	locals, err := classfile.ParseLocalVariableTable(codeAttr(t, cf, code, classfile.AttrLocalVariableTable))
	require.NoError(t, err)
	require.Len(t, locals, 2)
	require.Equal(t, [2]uint16{0, 24}, [2]uint16{locals[0].StartPC, locals[0].Length})
	require.Equal(t, [2]uint16{20, 2}, [2]uint16{locals[1].StartPC, locals[1].Length})

	frames, err := classfile.ParseStackMapTable(codeAttr(t, cf, code, classfile.AttrStackMapTable))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	require.Equal(t, uint16(16), frames[0].OffsetDelta)
	require.Equal(t, uint16(5), frames[1].OffsetDelta)
}

func TestInjectFrameAtZeroAndUninitialized(t *testing.T) {
	const desc = "(Ljava/lang/Object;)V"
	body := make([]byte, 12)
	body[11] = classfile.OpReturn
	full := classfile.Frame{
		Type:   255,
		Locals: []classfile.VerificationType{{Tag: classfile.VTObject, Index: 1}},
		Stack:  []classfile.VerificationType{{Tag: classfile.VTUninitialized, Index: 3}},
	}
	full.OffsetDelta = 9
	b := classfile.NewBuilder("p/A", "java/lang/Object", classfile.AccPublic)
	b.Method(classfile.AccPublic|classfile.AccStatic, "m", desc).
		Code(2, 1, body...).
		Frames(classfile.SameFrame(0), full)
	data, err := b.Bytes()
	require.NoError(t, err)

	cf, m, _ := method(t, data, "m", desc)
	_, err = Inject(cf, m, Target{Owner: "p/A"}, []Guard{{Slot: 0, Name: "o", Check: config.ThrowNPE}})
	require.NoError(t, err)
	out, err := cf.Bytes()
	require.NoError(t, err)
	cf, _, code := method(t, out, "m", desc)

	frames, err := classfile.ParseStackMapTable(codeAttr(t, cf, code, classfile.AttrStackMapTable))
	require.NoError(t, err)
	require.Len(t, frames, 2, "guard target reuses the frame at the old offset 0")
	require.Equal(t, uint16(16), frames[0].OffsetDelta)
	require.Equal(t, uint16(9), frames[1].OffsetDelta)
	require.Equal(t, uint16(19), frames[1].Stack[0].Index)
}

func TestInjectAddsStackMapTable(t *testing.T) {
	const desc = "(Ljava/lang/String;)V"
	b := classfile.NewBuilder("p/A", "java/lang/Object", classfile.AccPublic)
	b.Method(classfile.AccPublic, "m", desc).Code(0, 2, classfile.OpReturn)
	data, err := b.Bytes()
	require.NoError(t, err)

	cf, m, _ := method(t, data, "m", desc)
	_, err = Inject(cf, m, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.Assert}})
	require.NoError(t, err)
	out, err := cf.Bytes()
	require.NoError(t, err)
	cf, _, code := method(t, out, "m", desc)
	frames, err := classfile.ParseStackMapTable(codeAttr(t, cf, code, classfile.AttrStackMapTable))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, classfile.FrameSame, frames[0].Kind())
}

func TestInjectRejectsUnknownCodeAttribute(t *testing.T) {
	const desc = "(Ljava/lang/String;)V"
	b := classfile.NewBuilder("p/A", "java/lang/Object", classfile.AccPublic)
	b.Method(classfile.AccPublic, "m", desc).Code(0, 2, classfile.OpReturn).CodeAttribute("VendorOffsets", []byte{0, 0})
	data, err := b.Bytes()
	require.NoError(t, err)

	cf, m, _ := method(t, data, "m", desc)
	poolSize := cf.Pool.Count()
	_, err = Inject(cf, m, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.ThrowNPE}})
	var unsupported *UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "VendorOffsets", unsupported.Attribute)
	require.Equal(t, poolSize, cf.Pool.Count())
}

func TestInjectTooLarge(t *testing.T) {
	const desc = "(Ljava/lang/String;)V"
	body := make([]byte, classfile.MaxCodeLength-4)
	body[len(body)-1] = classfile.OpReturn
	b := classfile.NewBuilder("p/A", "java/lang/Object", classfile.AccPublic)
	b.Method(classfile.AccPublic, "m", desc).Code(0, 2, body...)
	data, err := b.Bytes()
	require.NoError(t, err)

	cf, m, _ := method(t, data, "m", desc)
	_, err = Inject(cf, m, Target{Owner: "p/A"}, []Guard{{Slot: 1, Name: "s", Check: config.ThrowNPE}})
	require.ErrorIs(t, err, classfile.ErrTooLarge)
}
