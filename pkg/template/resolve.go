package template

import (
	"errors"
	"fmt"
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
	// optionalMarker makes a reference resolve to nil instead of failing
	// when the path is absent: {{?a.b}}.
	optionalMarker = "?"
)

// Ref is a single template reference extracted from a value.
type Ref struct {
	Path     Path
	Optional bool
}

// parseRef parses the inside of a {{...}} block.
func parseRef(body string) (Ref, error) {
	body = strings.TrimSpace(body)
	optional := strings.HasPrefix(body, optionalMarker)
	if optional {
		body = strings.TrimSpace(body[len(optionalMarker):])
	}
	path, err := ParsePath(body)
	if err != nil {
		return Ref{}, err
	}
	return Ref{Path: path, Optional: optional}, nil
}

// wholeRef reports whether s is exactly one {{...}} reference, in which
// case resolution preserves the referenced value's type.
func wholeRef(s string) (Ref, bool, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, openDelim) || !strings.HasSuffix(trimmed, closeDelim) {
		return Ref{}, false, nil
	}
	body := trimmed[len(openDelim) : len(trimmed)-len(closeDelim)]
	if strings.Contains(body, openDelim) || strings.Contains(body, closeDelim) {
		return Ref{}, false, nil
	}
	ref, err := parseRef(body)
	if err != nil {
		return Ref{}, false, err
	}
	return ref, true, nil
}

// Resolve substitutes template references in value against data.
// Non-template values pass through unchanged. A string that is exactly one
// reference resolves to the referenced value with its type intact; a string
// with embedded references is interpolated textually. Maps and slices are
// resolved recursively into fresh containers.
//
// A missing required path returns a MissingVariableError; an optional
// reference ({{?path}}) resolves to nil (or the empty string when
// interpolated) instead.
func Resolve(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			resolved, err := Resolve(elem, data)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			resolved, err := Resolve(elem, data)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveArgs resolves a step argument map against data.
func ResolveArgs(args map[string]any, data map[string]any) (map[string]any, error) {
	if len(args) == 0 {
		return map[string]any{}, nil
	}
	resolved, err := Resolve(args, data)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]any), nil
}

func resolveString(s string, data map[string]any) (any, error) {
	if !strings.Contains(s, openDelim) {
		return s, nil
	}

	if ref, whole, err := wholeRef(s); err != nil {
		return nil, err
	} else if whole {
		return resolveRef(ref, data)
	}

	// Embedded references: textual interpolation.
	var b strings.Builder
	rest := s
	for {
		open := strings.Index(rest, openDelim)
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closeIdx := strings.Index(rest[open:], closeDelim)
		if closeIdx < 0 {
			return nil, fmt.Errorf("unterminated template in %q", s)
		}
		closeIdx += open

		b.WriteString(rest[:open])
		ref, err := parseRef(rest[open+len(openDelim) : closeIdx])
		if err != nil {
			return nil, err
		}
		val, err := resolveRef(ref, data)
		if err != nil {
			return nil, err
		}
		if val != nil {
			fmt.Fprintf(&b, "%v", val)
		}
		rest = rest[closeIdx+len(closeDelim):]
	}
}

func resolveRef(ref Ref, data map[string]any) (any, error) {
	val, err := ref.Path.Lookup(data)
	if err != nil {
		var missing *MissingVariableError
		if ref.Optional && errors.As(err, &missing) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

// Refs collects every template reference in value, recursively. The
// pattern validator uses this for forward-reference checks.
func Refs(value any) ([]Ref, error) {
	var refs []Ref
	err := collectRefs(value, &refs)
	return refs, err
}

func collectRefs(value any, refs *[]Ref) error {
	switch v := value.(type) {
	case string:
		rest := v
		for {
			open := strings.Index(rest, openDelim)
			if open < 0 {
				return nil
			}
			closeIdx := strings.Index(rest[open:], closeDelim)
			if closeIdx < 0 {
				return fmt.Errorf("unterminated template in %q", v)
			}
			closeIdx += open
			ref, err := parseRef(rest[open+len(openDelim) : closeIdx])
			if err != nil {
				return err
			}
			*refs = append(*refs, ref)
			rest = rest[closeIdx+len(closeDelim):]
		}
	case map[string]any:
		for _, elem := range v {
			if err := collectRefs(elem, refs); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := collectRefs(elem, refs); err != nil {
				return err
			}
		}
	}
	return nil
}
