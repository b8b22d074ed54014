package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

var (
	ErrNotObject      = errors.New("settings document must be a JSON object")
	ErrValueNotString = errors.New("encrypted value must be a string")
)

// Field is one top-level member of a settings document. Value always holds
// valid JSON; string members keep their quotes.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Document is a JSON object that remembers the order of its members.
type Document struct {
	fields []Field
	index  map[string]int
}

// NewDocument creates an empty document
func NewDocument() *Document {
	return &Document{index: make(map[string]int)}
}

// ParseDocument decodes a JSON object, keeping member order.
// A repeated key keeps its first position and its last value.
func ParseDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid JSON in settings document")
	}

	doc := NewDocument()
	err := jsonparser.ObjectEach(trimmed, func(key, value []byte, dataType jsonparser.ValueType, offset int) error {
		raw, err := rawValue(value, dataType)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		doc.Set(string(key), raw)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// rawValue restores the JSON text of a value handed out by jsonparser,
// which strips the quotes from strings.
func rawValue(value []byte, dataType jsonparser.ValueType) (json.RawMessage, error) {
	if dataType != jsonparser.String {
		return append(json.RawMessage(nil), value...), nil
	}
	s, err := jsonparser.ParseString(value)
	if err != nil {
		return nil, err
	}
	return marshalString(s)
}

func marshalString(s string) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Set adds or replaces a member. value must be valid JSON.
func (d *Document) Set(key string, value json.RawMessage) {
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = value
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, Field{Key: key, Value: value})
}

// SetString adds or replaces a string member
func (d *Document) SetString(key, value string) error {
	raw, err := marshalString(value)
	if err != nil {
		return err
	}
	d.Set(key, raw)
	return nil
}

// Get returns the raw JSON for key
func (d *Document) Get(key string) (json.RawMessage, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.fields[i].Value, true
}

// Fields returns the members in document order
func (d *Document) Fields() []Field {
	return d.fields
}

// Keys returns the member names in document order
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Key
	}
	return keys
}

// Text returns the plain text form of a member value: the contents of a
// JSON string, or the compact JSON of anything else.
func (f Field) Text() (string, error) {
	if len(f.Value) > 0 && f.Value[0] == '"' {
		var s string
		if err := json.Unmarshal(f.Value, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, f.Value); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarshalJSON encodes the document with members in order
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the document
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// Indent renders the document the way settings files are stored on disk:
// two-space indentation and a trailing newline.
func (d *Document) Indent() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
