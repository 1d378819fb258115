package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const samplePolicy = `# Sample policy
# for tests
package sample

import rego.v1

deny contains "no" if {
	input.mtu == 0
}
`

func TestLoadFromFile_Rego(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.rego")
	writeFile(t, path, samplePolicy)

	policies, err := newTestLoader().LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("got %d policies, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "sample" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Description != "Sample policy for tests" {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Severity != SeverityWarning || !p.Enabled {
		t.Errorf("defaults not applied: %+v", p)
	}
	if p.Metadata["source"] != path {
		t.Errorf("source = %v", p.Metadata["source"])
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	writeFile(t, path, `{"name":"json-policy","rego":"package j\n","enabled":true}`)

	policies, err := newTestLoader().LoadFromPaths(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	if policies[0].Name != "json-policy" || policies[0].Severity != SeverityWarning {
		t.Errorf("policy = %+v", policies[0])
	}
}

func TestLoadFromFile_InvalidJSON(t *testing.T) {
	tests := map[string]string{
		"syntax":  `{not json`,
		"no name": `{"rego":"package x"}`,
		"no rego": `{"name":"x"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.json")
			writeFile(t, path, content)
			if _, err := newTestLoader().LoadFromPaths(context.Background(), []string{path}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.rego"), samplePolicy)
	writeFile(t, filepath.Join(dir, "nested", "a.rego"), samplePolicy)
	writeFile(t, filepath.Join(dir, "README.md"), "ignored")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	policies, err := newTestLoader().LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}

	var names []string
	for _, p := range policies {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "b,a" {
		t.Errorf("names = %v, want [b a]", names)
	}
}

func TestLoadFromFile_UnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	writeFile(t, path, "x")

	if _, err := newTestLoader().LoadFromPaths(context.Background(), []string{path}); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	_, err := newTestLoader().LoadFromPaths(context.Background(), []string{"/nonexistent/policy.rego"})
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "no comments", content: "package x\n", want: ""},
		{name: "single line", content: "# Deny root\npackage x\n", want: "Deny root"},
		{name: "stops at code", content: "# First\n\npackage x\n# Later\n", want: "First"},
		{name: "skips package comment", content: "# package x\n# Real\npackage x\n", want: "Real"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractDescription(tt.content); got != tt.want {
				t.Errorf("extractDescription() = %q, want %q", got, tt.want)
			}
		})
	}
}
