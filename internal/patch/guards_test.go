package patch

import (
	"testing"

	"nullguard/internal/config"
	"nullguard/internal/model"
	"nullguard/internal/nullness"
)

func behavior(class *model.ClassDescriptor, mutate func(*model.BehaviorDescriptor)) *model.BehaviorDescriptor {
	b := &model.BehaviorDescriptor{
		Name:        "m",
		Descriptor:  "(Ljava/lang/String;)V",
		IsPublicAPI: true,
		Class:       class,
		Parameters: []*model.ParameterDescriptor{
			{Index: 0, Declared: 0, Slot: 1, Name: "s", Type: "Ljava/lang/String;", Nullness: nullness.MinusNull},
		},
	}
	if mutate != nil {
		mutate(b)
	}
	return b
}

func TestGuardsExclusions(t *testing.T) {
	plain := &model.ClassDescriptor{Name: "p/A", IsPublicAPI: true}
	anonymous := &model.ClassDescriptor{Name: "p/A$1", IsAnonymous: true}
	tests := []struct {
		name   string
		b      *model.BehaviorDescriptor
		cfg    config.Configuration
		guards int
		check  config.Check
	}{
		{"explicit non-null", behavior(plain, nil), config.Standard, 1, config.ThrowNPE},
		{"private api", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsPublicAPI = false }), config.Standard, 1, config.Assert},
		{"no check", behavior(plain, nil), config.NoChecks, 0, config.NoCheck},
		{"synthetic behavior", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsSynthetic = true }), config.Standard, 0, config.NoCheck},
		{"bridge", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsBridge = true }), config.Standard, 0, config.NoCheck},
		{"abstract", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsAbstract = true }), config.Standard, 0, config.NoCheck},
		{"native", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsNative = true }), config.Standard, 0, config.NoCheck},
		{"record equals", behavior(plain, func(b *model.BehaviorDescriptor) { b.IsRecordEquals = true }), config.Standard, 0, config.NoCheck},
		{"anonymous constructor", behavior(anonymous, func(b *model.BehaviorDescriptor) {
			b.Name, b.IsConstructor = "<init>", true
		}), config.Standard, 0, config.NoCheck},
		{"anonymous method", behavior(anonymous, nil), config.Standard, 1, config.ThrowNPE},
		{"synthetic parameter", behavior(plain, func(b *model.BehaviorDescriptor) { b.Parameters[0].IsSynthetic = true }), config.Standard, 0, config.NoCheck},
		{"primitive parameter", behavior(plain, func(b *model.BehaviorDescriptor) { b.Parameters[0].IsPrimitive = true }), config.Standard, 0, config.NoCheck},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Guards(tt.b, tt.cfg)
			if len(got) != tt.guards {
				t.Fatalf("guards = %v, want %d", got, tt.guards)
			}
			if tt.guards > 0 && (got[0].Check != tt.check || got[0].Slot != 1 || got[0].Name != "s") {
				t.Errorf("guard = %+v", got[0])
			}
		})
	}
}

func TestIsNotNullClassDefault(t *testing.T) {
	marked := &model.ClassDescriptor{Name: "p/A", Nullness: nullness.MinusNull}
	unmarked := &model.ClassDescriptor{Name: "p/B", Nullness: nullness.NoChange}
	tests := []struct {
		class *model.ClassDescriptor
		param nullness.Operator
		want  bool
	}{
		{marked, nullness.NoChange, true},
		{marked, nullness.Unspecified, true},
		{marked, nullness.MinusNull, true},
		{marked, nullness.UnionNull, false},
		{unmarked, nullness.NoChange, false},
		{unmarked, nullness.UnionNull, false},
		{unmarked, nullness.MinusNull, true},
	}
	for _, tt := range tests {
		b := behavior(tt.class, func(b *model.BehaviorDescriptor) { b.Parameters[0].Nullness = tt.param })
		if got := IsNotNull(b, b.Parameters[0]); got != tt.want {
			t.Errorf("class %s param %s: IsNotNull = %v, want %v", tt.class.Nullness, tt.param, got, tt.want)
		}
	}
}

func TestGuardsKeepDeclarationOrder(t *testing.T) {
	class := &model.ClassDescriptor{Name: "p/A", Nullness: nullness.MinusNull}
	b := behavior(class, func(b *model.BehaviorDescriptor) {
		b.Parameters = []*model.ParameterDescriptor{
			{Index: 0, Slot: 1, Name: "outer", IsSynthetic: true},
			{Index: 1, Slot: 2, Name: "count", IsPrimitive: true, Type: "J"},
			{Index: 2, Slot: 4, Name: "first"},
			{Index: 3, Slot: 5, Name: "second", Nullness: nullness.UnionNull},
			{Index: 4, Slot: 6, Name: "third"},
		}
	})
	got := Guards(b, config.Development)
	if len(got) != 2 || got[0].Name != "first" || got[0].Slot != 4 || got[1].Name != "third" || got[1].Slot != 6 {
		t.Fatalf("guards = %+v", got)
	}
	if got[0].Check != config.AssertAlways {
		t.Errorf("check = %s", got[0].Check)
	}
}
