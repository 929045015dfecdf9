package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Type validates one field value.
type Type interface {
	// Name returns the type as written in a schema (e.g., "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type intType struct{}

func (intType) Name() string { return "int" }

func (intType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return fmt.Errorf("expected int, got %s", v)
		}
		return nil
	case float64:
		// Whole floats come from plain JSON decoding.
		if v == math.Trunc(v) {
			return nil
		}
		return fmt.Errorf("expected int, got %v", v)
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

type floatType struct{}

func (floatType) Name() string { return "float" }

func (floatType) Validate(value any) error {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return fmt.Errorf("expected float, got %s", v)
		}
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type sliceType struct {
	elem Type
}

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// String, Int, Float and Bool return the built-in types.
func String() Type { return stringType{} }
func Int() Type    { return intType{} }
func Float() Type  { return floatType{} }
func Bool() Type   { return boolType{} }

// Slice returns a list type whose elements must all be of elem.
func Slice(elem Type) Type { return sliceType{elem: elem} }

// ParseType converts a type name such as "int" or "[string]" to a Type.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}

	switch strings.ToLower(name) {
	case "string":
		return String(), nil
	case "int", "integer":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %q", name)
	}
}
