package daemonconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker", "daemon.json")
	s, err := NewStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStoreApply(t *testing.T) {
	s := newTestStore(t)
	upserts := []Upsert{{Key: KeyMTU, Value: 1442}}

	res, err := s.Apply(upserts)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Changed {
		t.Error("first Apply() reported no change")
	}
	if res.BackupPath != "" {
		t.Errorf("backup written for absent file: %s", res.BackupPath)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"mtu\": 1442\n}\n" {
		t.Errorf("file = %q", data)
	}

	info, _ := os.Stat(s.Path())
	mtime := info.ModTime()

	res, err = s.Apply(upserts)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if res.Changed {
		t.Error("second Apply() reported a change")
	}
	info, _ = os.Stat(s.Path())
	if !info.ModTime().Equal(mtime) {
		t.Error("file rewritten on unchanged apply")
	}
}

func TestStoreApplyWritesBackup(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	original := []byte(`{"foo":"bar"}`)
	if err := os.WriteFile(s.Path(), original, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Apply([]Upsert{{Key: KeyMTU, Value: 1500}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.BackupPath != s.Path()+".bak" {
		t.Errorf("BackupPath = %q", res.BackupPath)
	}
	backup, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(backup) != string(original) {
		t.Errorf("backup = %q, want %q", backup, original)
	}

	data, _ := os.ReadFile(s.Path())
	if string(data) != "{\n  \"foo\": \"bar\",\n  \"mtu\": 1500\n}\n" {
		t.Errorf("file = %q", data)
	}
}

func TestStoreApplyCorrupt(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	corrupt := []byte("{ this is not json")
	if err := os.WriteFile(s.Path(), corrupt, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Apply([]Upsert{{Key: KeyMTU, Value: 1500}})
	var corruptErr *CorruptError
	if !errors.As(err, &corruptErr) {
		t.Fatalf("expected CorruptError, got %v", err)
	}

	data, _ := os.ReadFile(s.Path())
	if string(data) != string(corrupt) {
		t.Error("corrupt file was overwritten")
	}
}

func TestStoreApplyKeepsUntouchedKeys(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), []byte(`{"debug":"yes"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Apply([]Upsert{{Key: KeyMTU, Value: 1500}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Changed {
		t.Error("Apply() reported no change")
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != "{\n  \"debug\": \"yes\",\n  \"mtu\": 1500\n}\n" {
		t.Errorf("file = %q", data)
	}
}

func TestStoreApplyRejectsInvalidUpsert(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	original := []byte(`{"mtu":1500}`)
	if err := os.WriteFile(s.Path(), original, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Apply([]Upsert{{Key: KeyMTU, Value: 10}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var corruptErr *CorruptError
	if errors.As(err, &corruptErr) {
		t.Errorf("invalid upsert reported as corrupt file: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != string(original) {
		t.Error("file rewritten after rejected upsert")
	}
}

func TestStoreApplySkipBackup(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	original := []byte(`{"foo":"bar"}`)
	if err := os.WriteFile(s.Path(), original, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Apply([]Upsert{{Key: KeyMTU, Value: 1442}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	res, err := s.Apply([]Upsert{{Key: KeyLogDriver, Value: "json-file"}}, SkipBackup())
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if !res.Changed || res.BackupPath != "" {
		t.Errorf("result = %+v", res)
	}

	backup, err := os.ReadFile(s.Path() + ".bak")
	if err != nil {
		t.Fatal(err)
	}
	if string(backup) != string(original) {
		t.Errorf("backup = %q, want %q", backup, original)
	}
}

func TestStoreValidate(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"mtu":1442,"log-driver":"json-file","log-opts":{"max-size":"10m","max-file":"3"}}`, false},
		{"unknown keys allowed", `{"foo":"bar"}`, false},
		{"mtu too small", `{"mtu":10}`, true},
		{"mtu not integer", `{"mtu":"1500"}`, true},
		{"log-opts values must be strings", `{"log-opts":{"max-file":3}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreLoad(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.Len() != 0 {
		t.Errorf("absent file loaded %d keys", doc.Len())
	}
}
