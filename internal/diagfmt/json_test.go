package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONBasic(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleBag(), JSONOpts{PathMode: PathModeBasename, IncludeNotes: true}); err != nil {
		t.Fatalf("JSON() error: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Count != 2 || out.Errors != 1 || out.Warnings != 1 {
		t.Fatalf("counts = %d/%d/%d", out.Count, out.Errors, out.Warnings)
	}
	d := out.Diagnostics[1]
	if d.Code != "NUL2001" || d.Severity != "ERROR" {
		t.Errorf("diagnostic = %+v", d)
	}
	if d.Location.File != "Bar.class" || d.Location.Behavior != "run" || d.Location.Parameter != "s" {
		t.Errorf("location = %+v", d.Location)
	}
	if len(d.Notes) != 1 {
		t.Errorf("notes = %+v", d.Notes)
	}
}

func TestJSONMaxAndNotes(t *testing.T) {
	out := BuildDiagnosticsOutput(sampleBag(), JSONOpts{Max: 1})
	if out.Count != 1 {
		t.Fatalf("Count = %d, want 1", out.Count)
	}
	if out.Errors != 1 {
		t.Errorf("Errors counts the whole bag, got %d", out.Errors)
	}
	out = BuildDiagnosticsOutput(sampleBag(), JSONOpts{})
	if out.Diagnostics[1].Notes != nil {
		t.Errorf("notes included without IncludeNotes")
	}
}

func TestJSONEmptyBag(t *testing.T) {
	out := BuildDiagnosticsOutput(nil, JSONOpts{})
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"diagnostics":[],"count":0,"errors":0,"warnings":0}` {
		t.Errorf("got %s", b)
	}
}

func TestSarif(t *testing.T) {
	var buf bytes.Buffer
	meta := SarifRunMeta{ToolName: "nullguard", ToolVersion: "0.1.0", InvocationArgs: []string{"patch", "in", "out"}}
	if err := Sarif(&buf, sampleBag(), meta); err != nil {
		t.Fatal(err)
	}
	var log struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Invocations []struct {
				ExecutionSuccessful bool `json:"executionSuccessful"`
			} `json:"invocations"`
			Results []struct {
				RuleID    string `json:"ruleId"`
				Level     string `json:"level"`
				Locations []struct {
					LogicalLocations []struct {
						FullyQualifiedName string `json:"fullyQualifiedName"`
						Kind               string `json:"kind"`
					} `json:"logicalLocations"`
				} `json:"locations"`
			} `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &log); err != nil {
		t.Fatalf("invalid SARIF: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("log = %+v", log)
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "nullguard" || len(run.Tool.Driver.Rules) != 2 {
		t.Errorf("driver = %+v", run.Tool.Driver)
	}
	if run.Tool.Driver.Rules[0].ID != "NUL2001" {
		t.Errorf("rules not sorted by code: %+v", run.Tool.Driver.Rules)
	}
	if len(run.Invocations) != 1 || run.Invocations[0].ExecutionSuccessful {
		t.Errorf("invocations = %+v", run.Invocations)
	}
	r := run.Results[1]
	if r.RuleID != "NUL2001" || r.Level != "error" {
		t.Errorf("result = %+v", r)
	}
	ll := r.Locations[0].LogicalLocations[0]
	if ll.FullyQualifiedName != "com.example.Bar.run(s)" || ll.Kind != "parameter" {
		t.Errorf("logical location = %+v", ll)
	}
}
