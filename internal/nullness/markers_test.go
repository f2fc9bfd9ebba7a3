package nullness

import (
	"strings"
	"testing"
)

func TestMarkersOperator(t *testing.T) {
	tests := []struct {
		name    string
		markers Markers
		want    Operator
		wantErr bool
	}{
		{name: "empty", markers: Markers{}, want: NoChange},
		{name: "non-null", markers: Markers{NonNull: "Lorg/jspecify/annotations/NonNull;"}, want: MinusNull},
		{name: "nullable", markers: Markers{Nullable: "Lorg/jspecify/annotations/Nullable;"}, want: UnionNull},
		{name: "both", markers: Markers{NonNull: "Lx/NonNull;", Nullable: "Lx/Nullable;"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.markers.Operator(LevelParameter, "m(x)")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected conflict error")
				}
				if !strings.Contains(err.Error(), "@NonNull") || !strings.Contains(err.Error(), "@Nullable") {
					t.Fatalf("error = %q", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Operator = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVocabularyScanByLevel(t *testing.T) {
	v := NewVocabulary()
	descs := []string{
		"Ljava/lang/Deprecated;",
		"Lorg/jspecify/annotations/NullMarked;",
		"Lorg/jetbrains/annotations/Nullable;",
	}
	class := v.Scan(LevelClass, descs)
	if class.NonNull != "Lorg/jspecify/annotations/NullMarked;" || class.Nullable != "" {
		t.Fatalf("class markers = %+v", class)
	}
	param := v.Scan(LevelParameter, descs)
	if param.NonNull != "" || param.Nullable != "Lorg/jetbrains/annotations/Nullable;" {
		t.Fatalf("parameter markers = %+v", param)
	}
}

func TestVocabularyRespectsKinds(t *testing.T) {
	v := NewVocabulary(KindCabe)
	m := v.Scan(LevelPackage, []string{"Lorg/jspecify/annotations/NullMarked;", "Lcom/dua3/cabe/annotations/NullableApi;"})
	if m.NonNull != "" || m.Nullable != "Lcom/dua3/cabe/annotations/NullableApi;" {
		t.Fatalf("markers = %+v", m)
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"jetbrains", " JSpecify", "jetbrains"})
	if err != nil {
		t.Fatalf("ParseKinds: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != KindJSpecify || kinds[1] != KindJetBrains {
		t.Fatalf("kinds = %v", kinds)
	}
	if _, err := ParseKinds([]string{"lombok"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	all, err := ParseKinds(nil)
	if err != nil || len(all) != len(AllKinds) {
		t.Fatalf("ParseKinds(nil) = %v, %v", all, err)
	}
}

func TestSimpleName(t *testing.T) {
	cases := map[string]string{
		"Lorg/jspecify/annotations/NullMarked;": "NullMarked",
		"Lcom/x/Outer$Inner;":                   "Inner",
		"Plain":                                 "Plain",
	}
	for in, want := range cases {
		if got := SimpleName(in); got != want {
			t.Fatalf("SimpleName(%q) = %q, want %q", in, got, want)
		}
	}
}
