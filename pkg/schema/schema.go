package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Rule is the declaration of one field.
type Rule struct {
	Type     Type
	Required bool
}

// Schema maps field names to their rules.
type Schema map[string]Rule

// Violation is a field that does not match its rule.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("field %q: %s", v.Field, v.Reason)
}

// Parse builds a schema from type names. A trailing "?" makes the field optional.
func Parse(types map[string]string) (Schema, error) {
	if len(types) == 0 {
		return nil, nil
	}
	s := make(Schema, len(types))
	for field, name := range types {
		name = strings.TrimSpace(name)
		optional := strings.HasSuffix(name, "?")
		t, err := ParseType(strings.TrimSuffix(name, "?"))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		s[field] = Rule{Type: t, Required: !optional}
	}
	return s, nil
}

// Names returns the schema back as type names, the inverse of Parse.
func (s Schema) Names() map[string]string {
	out := make(map[string]string, len(s))
	for field, r := range s {
		name := r.Type.Name()
		if !r.Required {
			name += "?"
		}
		out[field] = name
	}
	return out
}

// Check returns the violations found in fields, sorted by field name.
// Fields not declared in the schema are ignored. A nil value counts as missing.
func (s Schema) Check(fields map[string]any) []Violation {
	if len(s) == 0 {
		return nil
	}

	names := make([]string, 0, len(s))
	for field := range s {
		names = append(names, field)
	}
	sort.Strings(names)

	var out []Violation
	for _, field := range names {
		rule := s[field]
		v, ok := fields[field]
		if !ok || v == nil {
			if rule.Required {
				out = append(out, Violation{Field: field, Reason: "required"})
			}
			continue
		}
		if err := rule.Type.Validate(v); err != nil {
			out = append(out, Violation{Field: field, Reason: err.Error()})
		}
	}
	return out
}
