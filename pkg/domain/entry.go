package domain

import (
	"fmt"
	"strings"
)

// Entry is a single position record of an organization chart.
// The engine reads ID, Label and SuperiorID; Fields are carried through untouched.
type Entry struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Label string `json:"label" yaml:"label" mapstructure:"label"`

	// SuperiorID references the ID of the position this one reports to.
	// An empty string means the entry declares no superior.
	SuperiorID string `json:"superior_id,omitempty" yaml:"superior_id,omitempty" mapstructure:"superior_id"`

	// Fields holds the opaque attributes of the record (salary, area, vacancies...).
	Fields map[string]any `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
}

// HasSuperior reports whether the entry declares a superior reference.
// It says nothing about whether the reference resolves.
func (e Entry) HasSuperior() bool {
	return e.SuperiorID != ""
}

// Field returns the value of an opaque attribute.
func (e Entry) Field(key string) (any, bool) {
	if e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[key]
	return v, ok
}

// Clone returns a copy of the entry whose Fields can be modified freely.
func (e Entry) Clone() Entry {
	if e.Fields != nil {
		e.Fields = CopyFields(e.Fields)
	}
	return e
}

// CopyFields deep copies nested maps and slices of a field set.
// Scalar values are shared.
func CopyFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyFields(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = copyValue(item)
		}
		return cp
	default:
		return v
	}
}

// CloneEntries copies a slice of entries, see Clone.
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// FieldEquals reports whether the opaque field key, printed with fmt.Sprint,
// equals value ignoring case. Missing fields never match.
func (e Entry) FieldEquals(key, value string) bool {
	v, ok := e.Field(key)
	if !ok || v == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(v)), strings.TrimSpace(value))
}

// ParseFieldFilter splits a "key=value" filter.
func ParseFieldFilter(s string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
