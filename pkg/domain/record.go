package domain

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// FieldMapping names the record keys that carry the identifier, the label
// and the superior reference. Every other key ends up in Entry.Fields.
type FieldMapping struct {
	ID       string `json:"id_field" yaml:"id_field" mapstructure:"id_field"`
	Label    string `json:"label_field" yaml:"label_field" mapstructure:"label_field"`
	Superior string `json:"superior_field" yaml:"superior_field" mapstructure:"superior_field"`
}

// DefaultMapping is used when no mapping is configured.
var DefaultMapping = FieldMapping{ID: "id", Label: "label", Superior: "superior_id"}

// RPTMapping matches the position tables (RPT) exported by municipal HR systems:
// {"ID": "1", "Puesto": "Alcalde", "ID_Jefe_Superior": null}.
var RPTMapping = FieldMapping{ID: "ID", Label: "Puesto", Superior: "ID_Jefe_Superior"}

// fieldsKey holds nested opaque attributes in records written by EncodeRecord.
const fieldsKey = "fields"

// WithDefaults fills empty keys from DefaultMapping.
func (m FieldMapping) WithDefaults() FieldMapping {
	if m.ID == "" {
		m.ID = DefaultMapping.ID
	}
	if m.Label == "" {
		m.Label = DefaultMapping.Label
	}
	if m.Superior == "" {
		m.Superior = DefaultMapping.Superior
	}
	return m
}

// DecodeRecord turns a loosely typed record (decoded JSON, YAML or front matter)
// into an Entry. Numeric identifiers are accepted and rendered as strings,
// a null superior becomes the empty string.
func DecodeRecord(record map[string]any, mapping FieldMapping) (Entry, error) {
	mapping = mapping.WithDefaults()

	var e Entry
	id, err := scalarString(record[mapping.ID])
	if err != nil {
		return Entry{}, fmt.Errorf("field %q: %w", mapping.ID, err)
	}
	if strings.TrimSpace(id) == "" {
		return Entry{}, ErrMissingID
	}
	e.ID = id

	if e.Label, err = scalarString(record[mapping.Label]); err != nil {
		return Entry{}, fmt.Errorf("field %q of %s: %w", mapping.Label, id, err)
	}
	if e.SuperiorID, err = scalarString(record[mapping.Superior]); err != nil {
		return Entry{}, fmt.Errorf("field %q of %s: %w", mapping.Superior, id, err)
	}

	for k, v := range record {
		if k == mapping.ID || k == mapping.Label || k == mapping.Superior {
			continue
		}
		if k == fieldsKey {
			if nested, ok := normalize(v).(map[string]any); ok {
				for nk, nv := range nested {
					e.setField(nk, nv)
				}
				continue
			}
		}
		e.setField(k, v)
	}

	return e, nil
}

// EncodeRecord is the inverse of DecodeRecord.
// Opaque fields are nested under a "fields" key so they cannot clash with the mapped keys.
func EncodeRecord(e Entry, mapping FieldMapping) map[string]any {
	mapping = mapping.WithDefaults()
	rec := map[string]any{
		mapping.ID:    e.ID,
		mapping.Label: e.Label,
	}
	if e.SuperiorID != "" {
		rec[mapping.Superior] = e.SuperiorID
	} else {
		rec[mapping.Superior] = nil
	}
	if len(e.Fields) > 0 {
		rec[fieldsKey] = CopyFields(e.Fields)
	}
	return rec
}

func (e *Entry) setField(k string, v any) {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[k] = normalize(v)
}

// scalarString converts ids written as numbers, json.Number or strings.
func scalarString(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch v.(type) {
	case map[string]any, map[any]any, []any:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
	var s string
	if err := mapstructure.WeakDecode(v, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// normalize converts map[any]any produced by some YAML decoders into map[string]any.
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprint(k)] = normalize(sub)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalize(sub)
		}
		return out
	default:
		return v
	}
}
