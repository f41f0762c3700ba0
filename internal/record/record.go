// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single named value of a record, already rendered as text.
type Field struct {
	Name  string
	Value string
}

// Record is one JSON object from a page's data array with its key order preserved.
type Record struct {
	fields []Field
	index  map[string]int
}

// New builds a record from fields. A repeated name overwrites the earlier value
// but keeps the earlier position.
func New(fields ...Field) Record {
	r := Record{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		r.set(f.Name, f.Value)
	}
	return r
}

func (r *Record) set(name, value string) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[name]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[name] = len(r.fields)
	r.fields = append(r.fields, Field{Name: name, Value: value})
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Names returns the field names in arrival order.
func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the ordered fields.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Get looks up a field value by name.
func (r Record) Get(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// GetOr returns the field value, or def when the field is absent or empty.
func (r Record) GetOr(name, def string) string {
	if v, ok := r.Get(name); ok && v != "" {
		return v
	}
	return def
}

// DecodeArray decodes a JSON array of objects into records, preserving the key
// order of every object. A JSON null decodes to no records.
func DecodeArray(raw []byte) ([]Record, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("data is not an array: %w", err)
	}

	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		rec, err := DecodeObject(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// DecodeObject decodes a single JSON object into a record.
func DecodeObject(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, fmt.Errorf("failed to read object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, fmt.Errorf("expected object, got %v", tok)
	}

	rec := Record{index: make(map[string]int)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Record{}, fmt.Errorf("failed to read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Record{}, fmt.Errorf("unexpected key token %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return Record{}, fmt.Errorf("failed to read value of %q: %w", key, err)
		}

		text, err := renderValue(value)
		if err != nil {
			return Record{}, fmt.Errorf("failed to render value of %q: %w", key, err)
		}
		rec.set(key, text)
	}

	if _, err := dec.Token(); err != nil {
		return Record{}, fmt.Errorf("unterminated object: %w", err)
	}
	return rec, nil
}

// renderValue turns a raw JSON value into cell text.
func renderValue(value json.RawMessage) (string, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return "", nil
	}

	switch value[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, value); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// numbers and booleans keep their literal text
		return string(value), nil
	}
}
