package daemonconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Well-known top-level keys written by the engine.
const (
	KeyMTU       = "mtu"
	KeyLogDriver = "log-driver"
	KeyLogOpts   = "log-opts"
)

// LogOpts are the logging driver options. Field order fixes the serialized
// key order.
type LogOpts struct {
	MaxSize string `json:"max-size"`
	MaxFile string `json:"max-file"`
}

// Upsert sets one top-level key. Value is any JSON-marshalable value.
type Upsert struct {
	Key   string
	Value any
}

// Document is a JSON object whose top-level keys keep their order. Values
// are held as raw JSON so keys this package does not know are preserved.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]json.RawMessage)}
}

// ErrNotObject is returned when the input is valid JSON but not an object.
var ErrNotObject = errors.New("document is not a JSON object")

// Parse decodes data into a Document. Empty or whitespace-only input yields
// an empty document. A repeated key keeps its first position and its last
// value.
func Parse(data []byte) (*Document, error) {
	doc := NewDocument()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotObject
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid JSON: unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON value for %q: %w", key, err)
		}
		doc.SetRaw(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON: trailing data after object")
	}

	return doc, nil
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of top-level keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (json.RawMessage, bool) {
	v, ok := d.values[key]
	return v, ok
}

// SetRaw stores raw JSON under key. An existing key keeps its position; a
// new key is appended.
func (d *Document) SetRaw(key string, raw json.RawMessage) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = append(json.RawMessage(nil), raw...)
}

// Set marshals value and stores it under key.
func (d *Document) Set(key string, value any) error {
	raw, err := marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	d.SetRaw(key, raw)
	return nil
}

// Apply performs each upsert in order.
func (d *Document) Apply(upserts []Upsert) error {
	for _, u := range upserts {
		if err := d.Set(u.Key, u.Value); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON renders the document compactly in key order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		if err := json.Compact(&buf, d.values[key]); err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Bytes renders the canonical on-disk form: two-space indentation, key
// order preserved, trailing newline. Equal documents render identically
// regardless of the formatting they were parsed from.
func (d *Document) Bytes() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// Merge parses existing, applies upserts in order and returns the canonical
// rendering. Keys not named by an upsert are carried over unchanged.
func Merge(existing []byte, upserts []Upsert) ([]byte, error) {
	doc, err := Parse(existing)
	if err != nil {
		return nil, err
	}
	if err := doc.Apply(upserts); err != nil {
		return nil, err
	}
	return doc.Bytes()
}

// marshal encodes v without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
