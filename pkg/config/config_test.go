package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/YusefSaid/Shell-scripting/pkg/engine"
)

func TestParse(t *testing.T) {
	data := []byte(`
users: Ed Kelly
groups:
  - Crew
  - Ship Officers
mtu: 1442
verbose: true
logging:
  format: json
journal:
  path: /tmp/journal.db
  keep: 10
tracing:
  exporter: otlp
  endpoint: collector:4317
  insecure: false
policy:
  paths: [/etc/converge/policies]
  disable: [mtu-range]
verify_runtime:
  enabled: true
  timeout: 45s
`)

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if diff := cmp.Diff(NameList{"Ed", "Kelly"}, f.Users); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(NameList{"Crew", "Ship Officers"}, f.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	if f.MTU != 1442 || !f.Verbose {
		t.Errorf("mtu/verbose = %d/%v", f.MTU, f.Verbose)
	}
	if f.Journal.Path != "/tmp/journal.db" || f.Journal.Keep != 10 {
		t.Errorf("journal = %+v", f.Journal)
	}
	if f.VerifyRuntime.Timeout != 45*time.Second || !f.VerifyRuntime.Enabled {
		t.Errorf("verify_runtime = %+v", f.VerifyRuntime)
	}
	if diff := cmp.Diff([]string{"mtu-range"}, f.Policy.Disable); diff != "" {
		t.Errorf("policy.disable mismatch (-want +got):\n%s", diff)
	}

	desired := f.DesiredState()
	if desired.MTU() != 1442 || len(desired.Users()) != 2 || len(desired.Groups()) != 2 {
		t.Errorf("DesiredState() = %+v", desired)
	}

	tc := f.Telemetry()
	if tc.Logging.Level != "debug" || tc.Logging.Format != "json" {
		t.Errorf("logging = %+v", tc.Logging)
	}
	if tc.Tracing.Exporter != "otlp" || tc.Tracing.Endpoint != "collector:4317" || tc.Tracing.Insecure {
		t.Errorf("tracing = %+v", tc.Tracing)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("telemetry config invalid: %v", err)
	}
}

func TestParseDefaults(t *testing.T) {
	for _, data := range []string{"", "users: []\n"} {
		f, err := Parse([]byte(data))
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", data, err)
		}
		if f.MTU != engine.DefaultMTU {
			t.Errorf("MTU = %d, want default", f.MTU)
		}
		if len(f.Users) != 0 || f.Verbose {
			t.Errorf("unexpected values: %+v", f)
		}
		tc := f.Telemetry()
		if tc.Logging.Level != "warn" || tc.Tracing.Exporter != "none" || !tc.Tracing.Insecure {
			t.Errorf("telemetry defaults changed: %+v", tc)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "mtu too small", data: "mtu: 10\n", want: "mtu must be at least 68"},
		{name: "explicit zero mtu", data: "mtu: 0\n", want: "mtu must be at least 68, got 0"},
		{name: "mtu too large", data: "mtu: 70000\n", want: "mtu must be at most 65535"},
		{name: "colon in user", data: "users: [\"ed:x\"]\n", want: "users[0]: invalid username"},
		{name: "space in user", data: "users: [\"ed kelly\"]\n", want: "users[0]: invalid username"},
		{name: "blank group", data: "groups: [\"  \"]\n", want: "groups[0]: invalid groupname"},
		{name: "log level", data: "logging:\n  level: loud\n", want: "logging.level must be one of"},
		{name: "otlp without endpoint", data: "tracing:\n  exporter: otlp\n", want: "tracing.endpoint is required"},
		{name: "negative keep", data: "journal:\n  keep: -1\n", want: "journal.keep must be at least 0"},
		{name: "unknown key", data: "userz: [Ed]\n", want: "field userz not found"},
		{name: "map for users", data: "users:\n  ed: true\n", want: "expected a list or a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestParseGroupsWithSpacesAllowed(t *testing.T) {
	f, err := Parse([]byte("groups: [\"Ship  Crew\"]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Groups[0] != "Ship  Crew" {
		t.Errorf("group = %q, normalization belongs to the engine", f.Groups[0])
	}
}

func TestLoad(t *testing.T) {
	f, err := Load("")
	if err != nil || f.MTU != engine.DefaultMTU {
		t.Fatalf("Load(\"\") = %+v, %v", f, err)
	}

	path := filepath.Join(t.TempDir(), "converge.yaml")
	if err := os.WriteFile(path, []byte("users: Ed\nmtu: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.MTU != 9000 || len(f.Users) != 1 {
		t.Errorf("Load() = %+v", f)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if err := os.WriteFile(path, []byte("mtu: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Load() error = %v, want path in message", err)
	}
}
