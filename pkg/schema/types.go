package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type defines the contract for field validation.
// Implementations determine how values are validated against a type.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "int").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// primitive backs the scalar validators. Each carries its display name and
// a check function.
type primitive struct {
	name  string
	check func(any) error
}

func (p *primitive) Name() string { return p.name }

func (p *primitive) Validate(value any) error { return p.check(value) }

// String creates a string type validator.
func String() Type {
	return &primitive{name: "string", check: func(value any) error {
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		return nil
	}}
}

// Int creates an integer type validator. Whole-number floats are accepted
// because JSON unmarshaling produces float64 for every numeric literal.
func Int() Type {
	return &primitive{name: "int", check: func(value any) error {
		switch v := value.(type) {
		case int, int8, int16, int32, int64:
			return nil
		case float64:
			if v == float64(int64(v)) {
				return nil
			}
			return fmt.Errorf("expected int, got float (not a whole number)")
		default:
			return fmt.Errorf("expected int, got %T", value)
		}
	}}
}

// Float creates a float type validator. Integers widen without error.
func Float() Type {
	return &primitive{name: "float", check: func(value any) error {
		switch value.(type) {
		case float32, float64, int, int8, int16, int32, int64:
			return nil
		}
		return fmt.Errorf("expected float, got %T", value)
	}}
}

// Bool creates a boolean type validator.
func Bool() Type {
	return &primitive{name: "bool", check: func(value any) error {
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		return nil
	}}
}

// Any creates a validator that accepts everything, nil included.
func Any() Type {
	return &primitive{name: "any", check: func(any) error { return nil }}
}

// sliceType validates slices of a specific element type.
type sliceType struct {
	elem Type
}

func (t *sliceType) Name() string { return fmt.Sprintf("[%s]", t.elem.Name()) }

func (t *sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// Slice creates a slice type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &sliceType{elem: elemType}
}

// mapType validates string-keyed maps with values of a specific type.
type mapType struct {
	value Type
}

func (t *mapType) Name() string { return fmt.Sprintf("map[%s]", t.value.Name()) }

func (t *mapType) Validate(value any) error {
	m, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected map, got %T", value)
	}
	for k, v := range m {
		if err := t.value.Validate(v); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return nil
}

// Map creates a map type validator for string-keyed maps.
func Map(valueType Type) Type {
	return &mapType{value: valueType}
}

// OptionalType wraps another type and marks the field as optional:
// a missing field is not an error, a present field must still conform.
type OptionalType struct {
	inner Type
}

func (t *OptionalType) Name() string { return "?" + t.inner.Name() }

func (t *OptionalType) Validate(value any) error {
	if value == nil {
		return nil
	}
	return t.inner.Validate(value)
}

// Inner returns the wrapped type.
func (t *OptionalType) Inner() Type { return t.inner }

// Optional marks a field type as optional.
func Optional(inner Type) Type {
	return &OptionalType{inner: inner}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(any) error) Type {
	return &primitive{name: name, check: validate}
}

// ParseType converts a string type name to a Type.
// Supports basic types ("string", "int", "float", "bool", "any"), slices
// ("[string]"), maps ("map[string]") and an optional marker prefix
// ("?string", "?[int]").
func ParseType(typeStr string) (Type, error) {
	if strings.HasPrefix(typeStr, "?") {
		inner, err := ParseType(typeStr[1:])
		if err != nil {
			return nil, err
		}
		return Optional(inner), nil
	}

	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elemType), nil
	}

	if strings.HasPrefix(typeStr, "map[") && strings.HasSuffix(typeStr, "]") {
		valueType, err := ParseType(typeStr[4 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return Map(valueType), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// ParseTypeMap converts a map of field names to type strings into a Schema.
// Example: {"portfolio_id": "string", "benchmark": "?string"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema)
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		result[key] = t
	}
	return result, nil
}
