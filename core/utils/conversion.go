package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ToInt converts various types to int using explicit type switching.
// It handles standard integer types, floats, strings, and byte slices.
// Graph APIs decode numeric ids as float64, so that case matters most.
func ToInt(val any) int {
	switch v := val.(type) {
	case nil:
		return 0
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case uint:
		return int(v)
	case uint64:
		return int(v)
	case uint32:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(v))
		return i
	case []byte:
		i, _ := strconv.Atoi(strings.TrimSpace(string(v)))
		return i
	default:
		s := fmt.Sprintf("%v", v)
		i, _ := strconv.Atoi(s)
		return i
	}
}

// ToString converts various types to string.
// Slices are joined with ", " which is how multi-valued properties are rendered.
func ToString(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		return strings.Join(v, ", ")
	case []any:
		return strings.Join(ToStrings(v), ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToStrings converts a scalar or slice value into a string slice.
// A nil value yields nil; a scalar yields a single-element slice.
func ToStrings(val any) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, ToString(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return []string{ToString(v)}
	}
}

// ParseBool reports the boolean value of val and whether val carried an
// explicit boolean at all. Unrecognised values report ok=false so callers can
// distinguish "false" from "unset".
func ParseBool(val any) (value bool, ok bool) {
	switch v := val.(type) {
	case bool:
		return v, true
	case int, int64, int32, uint, uint64, uint32, float64, float32:
		return ToInt(v) == 1, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true, true
		case "0", "false", "no":
			return false, true
		}
		return false, false
	case []byte:
		return ParseBool(string(v))
	case []string:
		if len(v) == 0 {
			return false, false
		}
		return ParseBool(v[0])
	case []any:
		if len(v) == 0 {
			return false, false
		}
		return ParseBool(v[0])
	default:
		return false, false
	}
}
