package patch

import (
	"nullguard/internal/codegen"
	"nullguard/internal/config"
	"nullguard/internal/model"
	"nullguard/internal/nullness"
)

// Instrumentable reports whether b may receive a prologue at all.
func Instrumentable(b *model.BehaviorDescriptor) bool {
	switch {
	case b.IsSynthetic, b.IsBridge, !b.HasBody():
		return false
	case b.IsConstructor && b.Class != nil && b.Class.IsAnonymous:
		return false
	}
	return true
}

// IsNotNull reports whether p must not be null on entry to b. An explicit
// nullable parameter opts out of a non-null class default, and the
// synthesized equals of a record accepts null by contract.
func IsNotNull(b *model.BehaviorDescriptor, p *model.ParameterDescriptor) bool {
	if b.IsRecordEquals || p.IsSynthetic || p.IsPrimitive {
		return false
	}
	if p.Nullness == nullness.MinusNull {
		return true
	}
	return b.Class != nil && b.Class.Nullness == nullness.MinusNull && p.Nullness != nullness.UnionNull
}

// Guards lists the checks for b under cfg, in declaration order.
func Guards(b *model.BehaviorDescriptor, cfg config.Configuration) []codegen.Guard {
	if !Instrumentable(b) {
		return nil
	}
	check := cfg.For(b.IsPublicAPI)
	if check == config.NoCheck {
		return nil
	}
	var guards []codegen.Guard
	for _, p := range b.Parameters {
		if IsNotNull(b, p) {
			guards = append(guards, codegen.Guard{Slot: p.Slot, Name: p.Name, Check: check})
		}
	}
	return guards
}
