package settings

import (
	"encoding/json"
	"math"
	"strconv"
)

// Values is one device's settings.
type Values map[string]any

// Int returns key as an integer. Fractional numbers are rejected.
func (v Values) Int(key string) (int, bool) {
	f, ok := v.Float(key)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Float returns key as a float.
func (v Values) Float(key string) (float64, bool) {
	switch n := v[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns key as a boolean.
func (v Values) Bool(key string) (bool, bool) {
	switch b := v[key].(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		return parsed, err == nil
	}
	return false, false
}

// String returns key as a string.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
