package reconcile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// decode converts a raw point value according to the descriptor kind.
// Enum kinds return the resolved label.
func decode(d parameter.Descriptor, p parameter.DataPoint) (any, error) {
	switch d.Kind {
	case parameter.KindNumber:
		v, ok := toFloat(p.Value)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d: %v is not a number", ErrDecode, p.ID, p.Value)
		}
		return d.Scaled(v), nil

	case parameter.KindBoolean:
		b, ok := toBool(p.Value)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d: %v is not a boolean", ErrDecode, p.ID, p.Value)
		}
		return b, nil

	case parameter.KindString:
		if p.Value == nil {
			return nil, fmt.Errorf("%w: parameter %d: missing value", ErrDecode, p.ID)
		}
		return toString(p.Value), nil

	case parameter.KindEnum, parameter.KindWriteOnlyEnum:
		if p.Value == nil {
			return nil, fmt.Errorf("%w: parameter %d: missing value", ErrDecode, p.ID)
		}
		v, ok := toFloat(p.Value)
		if !ok {
			return toString(p.Value), nil
		}
		label, _ := ResolveEnum(v, p.Enum, d.Tenths)
		return label, nil

	default:
		return nil, fmt.Errorf("%w: parameter %d: unsupported kind %v", ErrDecode, p.ID, d.Kind)
	}
}

// ResolveEnum maps a raw value onto its candidate label.
//
// The raw value is rounded (round(raw*10) when tenths is set) and matched
// exactly against the candidates. Without an exact match the closest
// candidate is returned regardless of distance. With no candidates the raw
// value's decimal form is returned and matched is false.
func ResolveEnum(raw float64, candidates []parameter.EnumCandidate, tenths bool) (label string, matched bool) {
	target := math.Round(raw)
	if tenths {
		target = math.Round(raw * 10)
	}

	for _, c := range candidates {
		if c.Value == target {
			return c.Label, true
		}
	}

	best := -1
	bestDiff := math.Inf(1)
	for i, c := range candidates {
		if diff := math.Abs(target - c.Value); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best >= 0 {
		return candidates[best].Label, true
	}

	return strconv.FormatFloat(raw, 'f', -1, 64), false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed, true
		}
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// CapitalizeLabel upper-cases the first letter of an enum label.
func CapitalizeLabel(label string) string {
	if label == "" {
		return label
	}
	r := []rune(label)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
