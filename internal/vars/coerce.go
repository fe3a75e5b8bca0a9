package vars

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)$`)

// ParseValue converts a literal string into a typed value for a declared
// type. It never fails: a bad number parses to 0 and malformed structured
// data falls back to an empty container.
func ParseValue(literal string, t Type) any {
	switch t {
	case TypeNumber:
		n, err := cast.ToFloat64E(strings.TrimSpace(literal))
		if err != nil {
			return float64(0)
		}
		return n
	case TypeBoolean:
		return literal == "true"
	case TypeObject:
		var m map[string]any
		if err := json.Unmarshal([]byte(literal), &m); err != nil || m == nil {
			return map[string]any{}
		}
		return m
	case TypeArray:
		var s []any
		if err := json.Unmarshal([]byte(literal), &s); err != nil || s == nil {
			return []any{}
		}
		return s
	default:
		return literal
	}
}

// InferType guesses a type from an undeclared literal. Only string, number,
// and boolean are ever inferred; structured types must be declared.
func InferType(literal string) Type {
	trimmed := strings.TrimSpace(literal)
	if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
		return TypeBoolean
	}
	if numberPattern.MatchString(trimmed) {
		return TypeNumber
	}
	return TypeString
}

// ParseInferred infers a type from literal and parses it in one step,
// for auto-registration of undeclared variables.
func ParseInferred(literal string) (Type, any) {
	t := InferType(literal)
	switch t {
	case TypeBoolean:
		return t, strings.EqualFold(strings.TrimSpace(literal), "true")
	case TypeNumber:
		return t, ParseValue(strings.TrimSpace(literal), TypeNumber)
	default:
		return t, literal
	}
}

// RenderValue serializes a resolved value into text. Containers render as
// JSON; if that fails (reference cycles) the value degrades to a plain
// string conversion.
func RenderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return cast.ToString(val)
		}
		return string(data)
	default:
		return cast.ToString(val)
	}
}
