// Package codegen injects parameter guards at the start of a method body and
// relocates everything in the Code attribute that refers to code offsets.
package codegen

import (
	"encoding/binary"
	"errors"
	"fmt"

	"fortio.org/safecast"

	"nullguard/internal/classfile"
	"nullguard/internal/config"
)

// Runtime classes referenced by guards.
const (
	npeClass            = "java/lang/NullPointerException"
	assertionErrorClass = "java/lang/AssertionError"
	classClass          = "java/lang/Class"
	assertionsFlag      = "$assertionsDisabled"
)

// guardStack is the operand stack depth a guard needs: the exception, its
// duplicate and the message.
const guardStack = 3

// ErrNoGuards is returned when Inject is called without guards.
var ErrNoGuards = errors.New("no guards to inject")

// Guard is one null check on a parameter slot.
type Guard struct {
	Slot  uint16
	Name  string
	Check config.Check
}

// Message is the detail message of the thrown error.
func (g Guard) Message() string {
	return g.Name + " is null"
}

// Target describes the class the guards are emitted into.
type Target struct {
	// Owner is the internal name of the class being patched.
	Owner string
	// AssertionsFlagOwner names the class holding $assertionsDisabled; empty
	// falls back to Owner.class.desiredAssertionStatus().
	AssertionsFlagOwner string
}

// assembler builds a prologue and records the offsets branched to.
type assembler struct {
	pool    *classfile.Pool
	code    []byte
	targets []int
	err     error
}

func (a *assembler) keep(idx uint16, err error) uint16 {
	if err != nil && a.err == nil {
		a.err = err
	}
	return idx
}

func (a *assembler) op(op byte, operands ...byte) {
	a.code = append(a.code, op)
	a.code = append(a.code, operands...)
}

func (a *assembler) u2op(op byte, idx uint16) {
	a.code = append(a.code, op)
	a.code = binary.BigEndian.AppendUint16(a.code, idx)
}

func (a *assembler) aload(slot uint16) {
	switch {
	case slot <= 3:
		a.op(classfile.OpAload0 + byte(slot))
	case slot <= 0xff:
		a.op(classfile.OpAload, byte(slot))
	default:
		a.op(classfile.OpWide, classfile.OpAload)
		a.code = binary.BigEndian.AppendUint16(a.code, slot)
	}
}

func (a *assembler) ldc(idx uint16) {
	if idx <= 0xff {
		a.op(classfile.OpLdc, byte(idx))
		return
	}
	a.u2op(classfile.OpLdcW, idx)
}

// branch emits a forward branch and returns the position of its operand.
func (a *assembler) branch(op byte) int {
	a.code = append(a.code, op, 0, 0)
	return len(a.code) - 2
}

// bind points the branches at operand positions to the current offset.
func (a *assembler) bind(fixups ...int) {
	here := len(a.code)
	for _, at := range fixups {
		rel, err := safecast.Conv[int16](here - (at - 1))
		if err != nil {
			a.keep(0, fmt.Errorf("guard branch out of range: %w", err))
			return
		}
		binary.BigEndian.PutUint16(a.code[at:], uint16(rel))
	}
	if len(a.targets) == 0 || a.targets[len(a.targets)-1] != here {
		a.targets = append(a.targets, here)
	}
}

// throwNew emits `new cls; dup; ldc msg; invokespecial cls.<init>(desc); athrow`.
func (a *assembler) throwNew(cls, ctorDesc, msg string) {
	a.u2op(classfile.OpNew, a.keep(a.pool.AddClass(cls)))
	a.op(classfile.OpDup)
	a.ldc(a.keep(a.pool.AddString(msg)))
	a.u2op(classfile.OpInvokespecial, a.keep(a.pool.AddMethodref(cls, "<init>", ctorDesc)))
	a.op(classfile.OpAthrow)
}

// assertionGate emits the jump taken when assertions are disabled.
func (a *assembler) assertionGate(t Target) int {
	if t.AssertionsFlagOwner != "" {
		a.u2op(classfile.OpGetstatic, a.keep(a.pool.AddFieldref(t.AssertionsFlagOwner, assertionsFlag, "Z")))
		return a.branch(classfile.OpIfne)
	}
	a.ldc(a.keep(a.pool.AddClass(t.Owner)))
	a.u2op(classfile.OpInvokevirtual, a.keep(a.pool.AddMethodref(classClass, "desiredAssertionStatus", "()Z")))
	return a.branch(classfile.OpIfeq)
}

func (a *assembler) guard(g Guard, t Target) {
	var skip []int
	switch g.Check {
	case config.NoCheck:
		return
	case config.Assert:
		skip = append(skip, a.assertionGate(t))
	case config.ThrowNPE, config.AssertAlways:
	default:
		a.keep(0, fmt.Errorf("unsupported check %v", g.Check))
		return
	}
	a.aload(g.Slot)
	skip = append(skip, a.branch(classfile.OpIfnonnull))
	if g.Check == config.ThrowNPE {
		a.throwNew(npeClass, "(Ljava/lang/String;)V", g.Message())
	} else {
		a.throwNew(assertionErrorClass, "(Ljava/lang/Object;)V", g.Message())
	}
	a.bind(skip...)
}

// Prologue is an assembled guard block.
type Prologue struct {
	Code []byte
	// Targets are the offsets inside Code that guards branch to, ascending.
	// The last one equals len(Code).
	Targets []int
}

// Assemble emits the guards in order, preceded by nop padding so that the
// block length is a multiple of four and switch alignment in the original
// body is preserved. Constants are added to pool.
func Assemble(pool *classfile.Pool, t Target, guards []Guard) (Prologue, error) {
	body := &assembler{pool: pool}
	for _, g := range guards {
		body.guard(g, t)
	}
	if body.err != nil {
		return Prologue{}, body.err
	}
	if len(body.code) == 0 {
		return Prologue{}, ErrNoGuards
	}
	pad := (4 - len(body.code)%4) % 4
	code := make([]byte, pad, pad+len(body.code))
	code = append(code, body.code...)
	targets := make([]int, len(body.targets))
	for i, off := range body.targets {
		targets[i] = off + pad
	}
	return Prologue{Code: code, Targets: targets}, nil
}
