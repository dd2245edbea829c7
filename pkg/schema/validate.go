package schema

// Schema is a map of field names to their expected types.
// Example: {"portfolio_id": String(), "benchmark": Optional(String())}
type Schema map[string]Type

// Validate checks if data conforms to the schema.
// Every failure is collected and returned as one AggregateError so callers
// can report all problems at once. Fields absent from the schema pass
// through untouched. A nil or empty schema accepts anything.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error
	for name, typ := range schema {
		if err := validateField(name, typ, data); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func validateField(name string, typ Type, data map[string]any) error {
	value, ok := data[name]
	if !ok {
		if _, optional := typ.(*OptionalType); optional {
			return nil
		}
		return &ValidationError{Key: name, Reason: "required"}
	}
	if err := typ.Validate(value); err != nil {
		return &ValidationError{Key: name, Reason: err.Error(), Value: value}
	}
	return nil
}
