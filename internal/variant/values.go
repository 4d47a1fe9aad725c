package variant

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
)

// Missing-value sentinels of decoded attributes.
const (
	MissingValue = "."
	MissingInt   = math.MinInt32
)

const missingFloatBits = 0x7FF800000000BCF1

// MissingFloat is a NaN with a distinguished payload. Use IsMissingFloat
// to test for it; a NaN never equals itself.
var MissingFloat = math.Float64frombits(missingFloatBits)

// IsMissingFloat reports whether f is the MissingFloat sentinel.
func IsMissingFloat(f float64) bool { return math.Float64bits(f) == missingFloatBits }

// DecodeValue converts a raw attribute value to the declared type.
//
// Raw values are what the text decoder stores: a string, a []string for
// comma-separated values, or a bool for flags. Already typed values pass
// through unchanged. A string holding commas is split first.
//
// The result is one of int, float64, string, bool, []int, []float64 or
// []string. Missing elements decode to MissingInt, MissingFloat or
// MissingValue. Character values are strings.
func DecodeValue(t header.Type, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		if strings.IndexByte(v, ',') >= 0 {
			return decodeList(t, strings.Split(v, ","))
		}
		return decodeOne(t, v)
	case []string:
		return decodeList(t, v)
	case bool:
		if t != header.Flag {
			return nil, fmt.Errorf("flag value for %s field", t)
		}
		return v, nil
	case int, float64, []int, []float64:
		return v, nil
	case nil:
		return nil, fmt.Errorf("nil value")
	}
	return nil, fmt.Errorf("unsupported raw value of type %T", raw)
}

func decodeOne(t header.Type, s string) (any, error) {
	switch t {
	case header.Integer:
		if s == MissingValue || s == "" {
			return MissingInt, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %w", err)
		}
		return n, nil
	case header.Float:
		if s == MissingValue || s == "" {
			return MissingFloat, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a float: %w", err)
		}
		return f, nil
	case header.Flag:
		switch s {
		case "", MissingValue, "1", "true":
			return true, nil
		}
		return nil, fmt.Errorf("flag fields take no value")
	case header.Character, header.String:
		if s == "" {
			return MissingValue, nil
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown type %s", t)
}

func decodeList(t header.Type, parts []string) (any, error) {
	switch t {
	case header.Integer:
		out := make([]int, len(parts))
		for i, p := range parts {
			v, err := decodeOne(t, p)
			if err != nil {
				return nil, err
			}
			out[i] = v.(int)
		}
		return out, nil
	case header.Float:
		out := make([]float64, len(parts))
		for i, p := range parts {
			v, err := decodeOne(t, p)
			if err != nil {
				return nil, err
			}
			out[i] = v.(float64)
		}
		return out, nil
	case header.Character, header.String:
		out := make([]string, len(parts))
		for i, p := range parts {
			if p == "" {
				p = MissingValue
			}
			out[i] = p
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s fields cannot hold a list", t)
}

// valueCount returns how many values a decoded attribute holds, and
// whether it is the lone missing value.
func valueCount(v any) (n int, missing bool) {
	switch v := v.(type) {
	case []int:
		return len(v), false
	case []float64:
		return len(v), false
	case []string:
		return len(v), false
	case int:
		return 1, v == MissingInt
	case float64:
		return 1, IsMissingFloat(v)
	case string:
		return 1, v == MissingValue
	}
	return 1, false
}

// checkCount verifies a decoded value against the resolved count of its
// declaration. A lone missing value satisfies any count.
func checkCount(v any, want int) error {
	if want < 0 {
		return nil
	}
	n, missing := valueCount(v)
	if missing || n == want {
		return nil
	}
	if want == 0 {
		if _, ok := v.(bool); ok {
			return nil
		}
	}
	return fmt.Errorf("expected %d values, found %d", want, n)
}

// rawString renders a raw or decoded value for error messages and text
// output of undeclared values.
func rawString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}

// cloneValue copies slice values so the copy does not alias the original.
func cloneValue(v any) any {
	switch v := v.(type) {
	case []int:
		return append([]int(nil), v...)
	case []float64:
		return append([]float64(nil), v...)
	case []string:
		return append([]string(nil), v...)
	}
	return v
}

func cloneAttributes(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}
