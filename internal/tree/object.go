// Package tree holds the JSON value model shared by templates and output
// documents: an insertion-ordered object type plus helpers to decode, convert
// and copy JSON-compatible Go values.
package tree

import (
	"bytes"
	"encoding/json"
	"iter"
	"slices"

	"github.com/goccy/go-yaml"
)

// Object is a JSON object that remembers key insertion order.
// The zero value is ready to use.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object sized for capacity keys.
func NewObject(capacity int) *Object {
	return &Object{
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

// ObjectOf builds an object from alternating key, value arguments.
// It panics on an odd argument count or a non-string key; meant for literals in
// code and tests.
func ObjectOf(pairs ...any) *Object {
	if len(pairs)%2 != 0 {
		panic("tree: ObjectOf requires key/value pairs")
	}

	o := NewObject(len(pairs) / 2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("tree: ObjectOf keys must be strings")
		}
		o.Set(key, pairs[i+1])
	}
	return o
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (any, bool) {
	value, ok := o.values[key]
	return value, ok
}

// Has reports whether key is present, even when its value is null.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
}

func (o *Object) Len() int {
	return len(o.keys)
}

// Keys returns a copy of the keys in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// All iterates over entries in insertion order.
func (o *Object) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range o.keys {
			if !yield(key, o.values[key]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy; values are shared.
func (o *Object) Clone() *Object {
	out := NewObject(len(o.keys))
	for key, value := range o.All() {
		out.Set(key, value)
	}
	return out
}

// Without returns a shallow copy with the given keys removed.
func (o *Object) Without(keys ...string) *Object {
	out := NewObject(len(o.keys))
	for key, value := range o.All() {
		if slices.Contains(keys, key) {
			continue
		}
		out.Set(key, value)
	}
	return out
}

// MarshalJSON preserves key order. HTML characters are left unescaped;
// json.Marshal escapes them again when it compacts the result.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, o.values[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// MarshalYAML renders the object as an ordered YAML mapping.
func (o *Object) MarshalYAML() (any, error) {
	items := make(yaml.MapSlice, 0, len(o.keys))
	for key, value := range o.All() {
		items = append(items, yaml.MapItem{Key: key, Value: value})
	}
	return items, nil
}
