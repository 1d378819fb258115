package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func evaluate(t *testing.T, eng *Engine, users, groups []string, mtu int) *Result {
	t.Helper()
	input := InputFromDesired(engine.NewDesiredState(users, groups, mtu, false), "node-1")
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return result
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
	}
	want := []string{"duplicate-names", "group-normalization", "mtu-range", "reserved-accounts"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("built-in policies mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateCleanState(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, []string{"Ed", "Kelly"}, []string{"Crew"}, 1500)
	if !result.Allowed {
		t.Errorf("clean state refused: %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("unexpected violations: %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 4 {
		t.Errorf("EvaluatedPolicies = %v", result.EvaluatedPolicies)
	}
}

func TestReservedAccounts(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		users    []string
		groups   []string
		allowed  bool
		severity Severity
		resource string
	}{
		{name: "root user", users: []string{"root"}, severity: SeverityError, resource: "user:root"},
		{name: "root case insensitive", users: []string{"Root"}, severity: SeverityError, resource: "user:Root"},
		{name: "reserved user", users: []string{"Nobody"}, allowed: true, severity: SeverityWarning, resource: "user:Nobody"},
		{name: "sudo group", users: []string{"ops"}, groups: []string{"sudo"}, allowed: true, severity: SeverityWarning, resource: "group:sudo"},
		{name: "wheel group", users: []string{"Ed"}, groups: []string{"wheel"}, allowed: true, severity: SeverityWarning, resource: "group:wheel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := evaluate(t, eng, tt.users, tt.groups, 1500)
			if result.Allowed != tt.allowed {
				t.Fatalf("Allowed = %v, want %v", result.Allowed, tt.allowed)
			}

			var found []Violation
			for _, v := range result.Violations {
				if v.Policy == "reserved-accounts" {
					found = append(found, v)
				}
			}
			if len(found) != 1 {
				t.Fatalf("reserved-accounts violations = %+v, want one", found)
			}
			if found[0].Resource != tt.resource || found[0].Severity != tt.severity {
				t.Errorf("violation = %+v", found[0])
			}
		})
	}
}

func TestMTURange(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		mtu      int
		warnings int
	}{
		{mtu: 68, warnings: 1},
		{mtu: 575, warnings: 1},
		{mtu: 576, warnings: 0},
		{mtu: 1442, warnings: 0},
		{mtu: 9216, warnings: 0},
		{mtu: 9217, warnings: 1},
	}

	for _, tt := range tests {
		result := evaluate(t, eng, nil, nil, tt.mtu)
		if !result.Allowed {
			t.Errorf("mtu %d refused", tt.mtu)
		}
		if got := len(result.Warnings()); got != tt.warnings {
			t.Errorf("mtu %d: %d warnings, want %d", tt.mtu, got, tt.warnings)
		}
		for _, w := range result.Warnings() {
			if w.Resource != "config:mtu" || w.Severity != SeverityWarning {
				t.Errorf("mtu %d: warning = %+v", tt.mtu, w)
			}
		}
	}
}

func TestDuplicateNames(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, []string{"Ed", "Kelly", "Ed"}, []string{"Ship Crew", "Ship_Crew"}, 1500)
	if !result.Allowed {
		t.Fatalf("duplicates refused: %+v", result.Blocking())
	}

	var dup []Violation
	for _, v := range result.Violations {
		if v.Policy == "duplicate-names" {
			dup = append(dup, v)
		}
	}
	want := []Violation{
		{Policy: "duplicate-names", Resource: "group:Ship_Crew", Message: "group 'Ship_Crew' is listed more than once after normalization", Severity: SeverityWarning},
		{Policy: "duplicate-names", Resource: "user:Ed", Message: "user 'Ed' is listed more than once", Severity: SeverityWarning},
	}
	if diff := cmp.Diff(want, dup); diff != "" {
		t.Errorf("duplicate violations mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupNormalizationInfo(t *testing.T) {
	eng := newTestEngine(t)

	result := evaluate(t, eng, nil, []string{"Ship  Crew"}, 1500)
	if !result.Allowed {
		t.Fatal("normalized group refused")
	}
	warnings := result.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("Warnings() = %+v", warnings)
	}
	if warnings[0].Severity != SeverityInfo || warnings[0].Resource != "group:Ship_Crew" {
		t.Errorf("violation = %+v", warnings[0])
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)

	if err := eng.DisablePolicy("reserved-accounts"); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}
	result := evaluate(t, eng, []string{"root"}, nil, 1500)
	if !result.Allowed {
		t.Error("disabled policy still refused the run")
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "reserved-accounts" {
			t.Error("disabled policy evaluated")
		}
	}

	if err := eng.EnablePolicy("reserved-accounts"); err != nil {
		t.Fatalf("EnablePolicy() error = %v", err)
	}
	if result := evaluate(t, eng, []string{"root"}, nil, 1500); result.Allowed {
		t.Error("re-enabled policy did not refuse the run")
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if _, err := eng.GetPolicy("missing"); err == nil {
		t.Error("GetPolicy() accepted unknown policy")
	}
}

func TestLoadPolicies(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()

	custom := `# Users must be lowercase.
package site.naming

import rego.v1

deny contains violation if {
	some name in input.users
	name != lower(name)
	violation := {
		"message": sprintf("user '%s' is not lowercase", [name]),
		"resource": sprintf("user:%s", [name]),
	}
}
`
	if err := os.WriteFile(filepath.Join(dir, "lowercase.rego"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	blocking := Policy{
		Name:     "no-kelly",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package site.kelly

import rego.v1

deny contains "kelly is not allowed" if {
	"Kelly" in input.users
}
`,
	}
	data, err := json.Marshal(blocking)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kelly.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	p, err := eng.GetPolicy("lowercase")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if p.Description != "Users must be lowercase." {
		t.Errorf("Description = %q", p.Description)
	}

	result := evaluate(t, eng, []string{"Ed", "Kelly"}, nil, 1500)
	if result.Allowed {
		t.Error("custom error policy did not refuse the run")
	}

	var got []Violation
	for _, v := range result.Violations {
		if v.Policy == "lowercase" || v.Policy == "no-kelly" {
			got = append(got, v)
		}
	}
	want := []Violation{
		{Policy: "lowercase", Resource: "user:Ed", Message: "user 'Ed' is not lowercase", Severity: SeverityWarning},
		{Policy: "lowercase", Resource: "user:Kelly", Message: "user 'Kelly' is not lowercase", Severity: SeverityWarning},
		{Policy: "no-kelly", Message: "kelly is not allowed", Severity: SeverityError},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("custom violations mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPoliciesRejectsInvalidRego(t *testing.T) {
	eng := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(path, []byte("package broken\n\ndeny contains if {"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{path}); err == nil {
		t.Error("expected compile error")
	}
	if _, err := eng.GetPolicy("broken"); err == nil {
		t.Error("broken policy registered")
	}
}

func TestInputFromDesired(t *testing.T) {
	input := InputFromDesired(engine.NewDesiredState(nil, []string{"Ship  Crew", "ops"}, 0, false), "node-1")

	if input.Users == nil || len(input.Users) != 0 {
		t.Errorf("Users = %#v, want empty slice", input.Users)
	}
	if diff := cmp.Diff([]string{"Ship_Crew", "ops"}, input.NormalizedGroups); diff != "" {
		t.Errorf("NormalizedGroups mismatch (-want +got):\n%s", diff)
	}
	if input.MTU != engine.DefaultMTU {
		t.Errorf("MTU = %d, want default", input.MTU)
	}
	if input.Context.Hostname != "node-1" || input.Context.Timestamp.IsZero() {
		t.Errorf("Context = %+v", input.Context)
	}
}
