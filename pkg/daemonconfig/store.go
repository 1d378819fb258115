package daemonconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultPath is the runtime daemon configuration file.
const DefaultPath = "/etc/docker/daemon.json"

//go:embed daemon.schema.json
var schemaJSON string

// CorruptError reports an existing document that cannot be merged safely.
type CorruptError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt config %s: %v", e.Path, e.Err)
}

// Unwrap returns the parse or validation error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Result describes one Apply transaction.
type Result struct {
	// Changed is false when the merged document equals the file on disk.
	Changed bool

	// Previous and Current are the file contents before and after.
	Previous []byte
	Current  []byte

	// BackupPath is set when a previous document was copied aside.
	BackupPath string
}

// Store owns the read-merge-write transaction on one document file.
type Store struct {
	path   string
	schema *jsonschema.Schema
	logger zerolog.Logger
}

// NewStore creates a Store for path.
func NewStore(path string, logger zerolog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	schema, err := jsonschema.CompileString("daemon.schema.json", schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile daemon config schema: %w", err)
	}
	return &Store{
		path:   path,
		schema: schema,
		logger: logger.With().Str("component", "daemonconfig").Str("path", path).Logger(),
	}, nil
}

// Path returns the managed file path.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current file contents; an absent file reads as nil.
func (s *Store) Read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return data, nil
}

// Load parses the current document.
func (s *Store) Load() (*Document, error) {
	data, err := s.Read()
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	return doc, nil
}

// Validate checks a rendered document against the daemon schema.
func (s *Store) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.schema.Validate(v)
}

// ApplyOption configures one Apply call.
type ApplyOption func(*applyOptions)

type applyOptions struct {
	skipBackup bool
}

// SkipBackup leaves an existing <path>.bak untouched. Use it for every Apply
// after the first write of a run so the backup keeps the document as it was
// before the run started.
func SkipBackup() ApplyOption {
	return func(o *applyOptions) {
		o.skipBackup = true
	}
}

// Apply merges upserts into the file. When the result is byte-identical to
// the current contents nothing is written. Otherwise the previous file is
// copied to <path>.bak and the new document replaces it atomically.
//
// Only the upserted keys are checked against the daemon schema; keys this
// call does not touch are carried over as they are.
func (s *Store) Apply(upserts []Upsert, opts ...ApplyOption) (*Result, error) {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	previous, err := s.Read()
	if err != nil {
		return nil, err
	}

	doc, err := Parse(previous)
	if err != nil {
		return nil, &CorruptError{Path: s.path, Err: err}
	}
	if err := s.validateUpserts(upserts); err != nil {
		return nil, err
	}
	if err := doc.Apply(upserts); err != nil {
		return nil, err
	}
	current, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	result := &Result{Previous: previous, Current: current}
	if bytes.Equal(previous, current) {
		s.logger.Debug().Msg("Daemon config already up to date")
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if previous != nil && !o.skipBackup {
		result.BackupPath = s.path + ".bak"
		if err := atomicwriter.WriteFile(result.BackupPath, previous, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write backup: %w", err)
		}
	}
	if err := atomicwriter.WriteFile(s.path, current, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	result.Changed = true
	s.logger.Info().Strs("keys", doc.Keys()).Str("backup", result.BackupPath).Msg("Daemon config updated")
	return result, nil
}

func (s *Store) validateUpserts(upserts []Upsert) error {
	partial := NewDocument()
	if err := partial.Apply(upserts); err != nil {
		return err
	}
	data, err := partial.Bytes()
	if err != nil {
		return err
	}
	if err := s.Validate(data); err != nil {
		return fmt.Errorf("invalid daemon settings: %w", err)
	}
	return nil
}
