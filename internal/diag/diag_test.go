package diag

import "testing"

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CfgInvalidString, "CFG1001"},
		{NulConflict, "NUL2001"},
		{StrMissingLocalVars, "STR3001"},
		{IOWriteFailed, "IO4002"},
		{GenCodeTooLarge, "GEN5001"},
		{ObsTimings, "OBS6001"},
		{UnknownCode, "E0000"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Fatalf("Code(%d).ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
	if Code(3999).Title() != "Unknown error" {
		t.Fatalf("unregistered code title = %q", Code(3999).Title())
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: b})
	ReportWarning(r, StrMissingLocalVars, Location{Path: "b/B.class", Class: "b/B"}, "no LVT").Emit()
	ReportError(r, NulConflict, Location{Path: "a/A.class", Class: "a/A"}, "conflict").Emit()
	ReportWarning(r, StrMissingLocalVars, Location{Path: "b/B.class", Class: "b/B"}, "no LVT").Emit()
	ReportWarning(r, StrMissingLocalVars, Location{Path: "a/A.class", Class: "a/A"}, "no LVT").Emit()

	if b.Len() != 3 {
		t.Fatalf("bag len = %d, want 3", b.Len())
	}
	b.Sort()
	items := b.Items()
	if items[0].Code != NulConflict || items[1].Primary.Class != "a/A" || items[2].Primary.Class != "b/B" {
		t.Fatalf("unexpected order: %+v", items)
	}
	if !b.HasErrors() || b.Count(SevWarning) != 3 {
		t.Fatalf("HasErrors=%v warnings=%d", b.HasErrors(), b.Count(SevWarning))
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewWarning(StrInfo, Location{}, "one")) {
		t.Fatalf("first add rejected")
	}
	if b.Add(NewWarning(StrInfo, Location{}, "two")) {
		t.Fatalf("add past limit accepted")
	}
	other := NewBag(4)
	other.Add(NewError(IOReadFailed, Location{}, "x"))
	other.Add(NewError(IOReadFailed, Location{}, "y"))
	b.Merge(other)
	if b.Len() != 3 || b.Cap() != 3 {
		t.Fatalf("after merge len=%d cap=%d", b.Len(), b.Cap())
	}
}

func TestLocationString(t *testing.T) {
	loc := Location{Path: "com/x/A.class", Class: "com.x.A", Behavior: "run", Parameter: "arg"}
	if got, want := loc.String(), "com/x/A.class: com.x.A.run(arg)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if got := (Location{Path: "p"}).String(); got != "p" {
		t.Fatalf("String() = %q", got)
	}
}
