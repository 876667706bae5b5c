package parsing

import (
	"strings"
)

// Visibility suffixes attached to record and mapping values by the ledger.
const (
	privateSuffix = ".private"
	publicSuffix  = ".public"
)

// typeSuffixes lists the literal type annotations the ledger appends to scalar values.
// Longer suffixes come first so that "u128" is not matched as "u8".
var typeSuffixes = []string{
	"field", "group", "scalar", "address", "boolean",
	"u128", "u64", "u32", "u16", "u8",
	"i128", "i64", "i32", "i16", "i8",
}

// StripVisibility removes every visibility suffix from a single string.
func StripVisibility(s string) string {
	s = strings.ReplaceAll(s, privateSuffix, "")
	return strings.ReplaceAll(s, publicSuffix, "")
}

// StripVisibilityTags walks an arbitrary decoded value and removes visibility suffixes from
// every string leaf. Maps and slices are copied, never modified in place. Leaves of any other
// type are returned unchanged.
func StripVisibilityTags(v any) any {
	switch val := v.(type) {
	case string:
		return StripVisibility(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = StripVisibilityTags(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = StripVisibility(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = StripVisibilityTags(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = StripVisibility(item)
		}
		return out
	default:
		return v
	}
}

// StripTypeSuffix splits a scalar literal into its value and type annotation:
// "25000u64" yields ("25000", "u64"). Visibility suffixes are removed first. A literal
// without a known annotation is returned as-is with an empty type.
func StripTypeSuffix(s string) (value, typ string) {
	s = StripVisibility(strings.TrimSpace(s))
	for _, suffix := range typeSuffixes {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			head := s[:len(s)-len(suffix)]
			if isNumeric(head) {
				return head, suffix
			}
		}
	}
	return s, ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
		if s == "" {
			return false
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
