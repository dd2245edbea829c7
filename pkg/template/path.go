package template

import (
	"fmt"
	"strconv"
	"strings"
)

// MissingVariableError reports a path that could not be resolved against
// the execution state. Segment names the exact segment that failed.
type MissingVariableError struct {
	Path    string
	Segment string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template path %q: missing segment %q", e.Path, e.Segment)
}

// Segment is one element of a parsed path: a map key or a slice index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed dotted/indexed data path, e.g. "x.y[0].z".
type Path struct {
	raw      string
	segments []Segment
}

// ParsePath parses a dotted path with optional [n] index suffixes.
func ParsePath(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Path{}, fmt.Errorf("empty template path")
	}

	var segments []Segment
	for _, part := range strings.Split(trimmed, ".") {
		if part == "" {
			return Path{}, fmt.Errorf("template path %q: empty segment", raw)
		}

		key := part
		var indexes []int
		for {
			open := strings.IndexByte(key, '[')
			if open < 0 {
				break
			}
			closeIdx := strings.IndexByte(key, ']')
			if closeIdx < open {
				return Path{}, fmt.Errorf("template path %q: unbalanced index in %q", raw, part)
			}
			idx, err := strconv.Atoi(key[open+1 : closeIdx])
			if err != nil || idx < 0 {
				return Path{}, fmt.Errorf("template path %q: invalid index in %q", raw, part)
			}
			indexes = append(indexes, idx)
			key = key[:open] + key[closeIdx+1:]
		}

		if key == "" && len(indexes) == 0 {
			return Path{}, fmt.Errorf("template path %q: empty segment", raw)
		}
		if key != "" {
			segments = append(segments, Segment{Key: key})
		}
		for _, idx := range indexes {
			segments = append(segments, Segment{Index: idx, IsIndex: true})
		}
	}

	if len(segments) == 0 || segments[0].IsIndex {
		return Path{}, fmt.Errorf("template path %q: must start with a key", raw)
	}

	return Path{raw: trimmed, segments: segments}, nil
}

// String returns the original path text.
func (p Path) String() string { return p.raw }

// Root returns the first key of the path. Pattern validation uses it to
// check that references point at inputs or earlier bindings.
func (p Path) Root() string { return p.segments[0].Key }

// Lookup walks the path against data. A segment that cannot be resolved
// returns a MissingVariableError naming that segment.
func (p Path) Lookup(data map[string]any) (any, error) {
	var current any = data
	for _, seg := range p.segments {
		if seg.IsIndex {
			list, ok := current.([]any)
			if !ok {
				return nil, &MissingVariableError{Path: p.raw, Segment: seg.String()}
			}
			if seg.Index >= len(list) {
				return nil, &MissingVariableError{Path: p.raw, Segment: seg.String()}
			}
			current = list[seg.Index]
			continue
		}

		m, ok := current.(map[string]any)
		if !ok {
			return nil, &MissingVariableError{Path: p.raw, Segment: seg.Key}
		}
		v, ok := m[seg.Key]
		if !ok {
			return nil, &MissingVariableError{Path: p.raw, Segment: seg.Key}
		}
		current = v
	}
	return current, nil
}
