package parsing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Lookup walks nested maps along path. The second result is false when any step is missing
// or is not a map.
func Lookup(v any, path ...string) (any, bool) {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns a scalar with visibility suffixes removed. The type suffix is kept, so field
// identifiers like "123field" survive unchanged.
func String(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return StripVisibility(strings.TrimSpace(val)), nil
	case fmt.Stringer:
		return StripVisibility(val.String()), nil
	default:
		return "", fmt.Errorf("expected scalar, got %T", v)
	}
}

// Uint64 decodes an unsigned integer literal such as "25000u64.private". JSON numbers are
// accepted as long as they are non-negative integers.
func Uint64(v any) (uint64, error) {
	switch val := v.(type) {
	case float64:
		if val < 0 || val != math.Trunc(val) || val >= math.MaxUint64 {
			return 0, fmt.Errorf("invalid unsigned integer %v", val)
		}
		return uint64(val), nil
	case uint64:
		return val, nil
	case int:
		if val < 0 {
			return 0, fmt.Errorf("invalid unsigned integer %d", val)
		}
		return uint64(val), nil
	}

	s, err := String(v)
	if err != nil {
		return 0, err
	}
	num, typ := StripTypeSuffix(s)
	if typ != "" && !strings.HasPrefix(typ, "u") {
		return 0, fmt.Errorf("expected unsigned integer literal, got %q", s)
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned integer %q: %w", s, err)
	}
	return n, nil
}

// Bool decodes "true"/"false" with or without visibility suffixes.
func Bool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	s, err := String(v)
	if err != nil {
		return false, err
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// StringSlice decodes an array of scalars. A single scalar is treated as a one-element array,
// which is how short names encoded into one field appear.
func StringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, err := String(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = StripVisibility(item)
		}
		return out, nil
	default:
		s, err := String(v)
		if err != nil {
			return nil, err
		}
		// Array values sometimes arrive as literal text instead of a decoded array.
		if strings.HasPrefix(s, "[") {
			parsed, err := ParseLedgerValue(s)
			if err != nil {
				return nil, err
			}
			return StringSlice(parsed)
		}
		return []string{s}, nil
	}
}

// Field returns a field identifier such as "123field". Bare integers gain the suffix so that
// identifiers compare equal however the source rendered them.
func Field(v any) (string, error) {
	s, err := String(v)
	if err != nil {
		return "", err
	}
	num, typ := StripTypeSuffix(s)
	switch {
	case typ == "field":
		return s, nil
	case typ == "" && isNumeric(num):
		return num + "field", nil
	default:
		return "", fmt.Errorf("expected field literal, got %q", s)
	}
}
