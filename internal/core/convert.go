package core

// convert.go turns cell text into typed field values.
//
// Cells come from a published spreadsheet, so numbers may use either a dot or
// a comma as decimal separator. A value that cannot be converted is Absent:
// Coerce returns ok=false and the destination field keeps its default.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex accepts integers, decimals and scientific notation. It keeps
// ParseFloat's extra syntax (hex floats, inf, nan, underscores) out.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Coerce converts raw into the Go value for spec.Type. String cells are
// returned unchanged, including the empty string. Other types tolerate
// surrounding whitespace. Unsupported types always yield ok=false; targets
// containing them are rejected by Target.Validate before a run starts.
func Coerce(raw string, spec FieldSpec) (value any, ok bool) {
	if spec.Type == FieldString {
		return raw, true
	}

	s := strings.TrimSpace(raw)
	switch spec.Type {
	case FieldInt8:
		return parseInt(s, 8, func(v int64) any { return int8(v) })
	case FieldInt16:
		return parseInt(s, 16, func(v int64) any { return int16(v) })
	case FieldInt32:
		return parseInt(s, 32, func(v int64) any { return int32(v) })
	case FieldInt64:
		return parseInt(s, 64, func(v int64) any { return v })
	case FieldBool:
		return parseBool(s)
	case FieldFloat32:
		f, ok := parseFloat(s, 32)
		if !ok {
			return nil, false
		}
		return float32(f), true
	case FieldFloat64:
		f, ok := parseFloat(s, 64)
		if !ok {
			return nil, false
		}
		return f, true
	case FieldEnum:
		return parseEnum(s, spec.Enumerants)
	default:
		return nil, false
	}
}

func parseInt(s string, bits int, conv func(int64) any) (any, bool) {
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return nil, false
	}
	return conv(v), true
}

func parseBool(s string) (any, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	default:
		return nil, false
	}
}

// parseFloat treats every comma as a decimal point, then parses the result
// independently of the host locale.
func parseFloat(s string, bits int) (float64, bool) {
	s = strings.ReplaceAll(s, ",", ".")
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, bits)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseEnum prefers an exact name match, then the first case-insensitive one.
func parseEnum(s string, enumerants []Enumerant) (any, bool) {
	for _, e := range enumerants {
		if e.Name == s {
			return e.Value, true
		}
	}
	for _, e := range enumerants {
		if strings.EqualFold(e.Name, s) {
			return e.Value, true
		}
	}
	return nil, false
}
