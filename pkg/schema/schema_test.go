package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"string", "string"},
		{"int", "int"},
		{"integer", "int"},
		{"number", "float"},
		{"Bool", "bool"},
		{"[string]", "[string]"},
		{"[[int]]", "[[int]]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, typ.Name())
		})
	}

	_, err := ParseType("date")
	assert.Error(t, err)
	_, err = ParseType("[date]")
	assert.Error(t, err)
}

func TestTypes_Validate(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value any
		ok    bool
	}{
		{"string", String(), "Engineering", true},
		{"string rejects number", String(), 3, false},
		{"int", Int(), 3, true},
		{"int from json number", Int(), json.Number("42"), true},
		{"int rejects decimal json number", Int(), json.Number("4.5"), false},
		{"int from whole float", Int(), float64(7), true},
		{"int rejects fraction", Int(), 7.5, false},
		{"float from json number", Float(), json.Number("52000.5"), true},
		{"float from int", Float(), 30, true},
		{"float rejects string", Float(), "high", false},
		{"bool", Bool(), true, true},
		{"bool rejects string", Bool(), "yes", false},
		{"slice", Slice(String()), []any{"a", "b"}, true},
		{"slice element mismatch", Slice(String()), []any{"a", 1}, false},
		{"slice rejects scalar", Slice(Int()), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSchema_Check(t *testing.T) {
	s, err := Parse(map[string]string{
		"area":      "string",
		"salary":    "float",
		"vacancies": "int?",
	})
	require.NoError(t, err)

	assert.Empty(t, s.Check(map[string]any{"area": "Board", "salary": 52000.5}))
	assert.Empty(t, s.Check(map[string]any{"area": "Board", "salary": 1, "vacancies": 2, "extra": "ignored"}))

	got := s.Check(map[string]any{"salary": "a lot", "vacancies": nil})
	assert.Equal(t, []Violation{
		{Field: "area", Reason: "required"},
		{Field: "salary", Reason: "expected float, got string"},
	}, got)
	assert.Equal(t, `field "area": required`, got[0].String())
}

func TestParse(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Empty(t, s.Check(map[string]any{"x": 1}))

	_, err = Parse(map[string]string{"grade": "letter"})
	assert.ErrorContains(t, err, "grade")

	in := map[string]string{"area": "string", "tags": "[string]?"}
	s, err = Parse(in)
	require.NoError(t, err)
	assert.Equal(t, in, s.Names())
	assert.False(t, s["tags"].Required)
}
