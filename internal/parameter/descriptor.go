package parameter

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a remote parameter identifier.
type ID int

// String returns the decimal form used by the remote API.
func (id ID) String() string {
	return strconv.Itoa(int(id))
}

// ParseID parses a decimal parameter identifier.
func ParseID(s string) (ID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing parameter id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parameter id must be positive, got %d", n)
	}
	return ID(n), nil
}

// Kind is how a parameter's raw value is decoded.
type Kind int

// Value kinds.
const (
	KindNumber Kind = iota
	KindBoolean
	KindString
	KindEnum
	// KindWriteOnlyEnum values feed selectable options and never become attributes.
	KindWriteOnlyEnum
)

var kindNames = map[Kind]string{
	KindNumber:        "number",
	KindBoolean:       "boolean",
	KindString:        "string",
	KindEnum:          "enum",
	KindWriteOnlyEnum: "write-only-enum",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Descriptor is the immutable description of one remote parameter.
type Descriptor struct {
	ID        ID     `json:"id"`
	Kind      Kind   `json:"kind"`
	Attribute string `json:"attribute"`
	Name      string `json:"name"`
	Unit      string `json:"unit,omitempty"`

	// Scale multiplies numeric values before publishing. Zero means 1.
	Scale float64 `json:"scale,omitempty"`

	// Tenths marks enum parameters whose raw value is reported in tenths of
	// the candidate values; resolution compares round(raw*10).
	Tenths bool `json:"tenths,omitempty"`
}

// Scaled applies the descriptor scale to a raw numeric value.
func (d Descriptor) Scaled(raw float64) float64 {
	if d.Scale == 0 {
		return raw
	}
	return raw * d.Scale
}

// PublishesAttribute reports whether values of this descriptor are written to
// the attribute store.
func (d Descriptor) PublishesAttribute() bool {
	return d.Kind != KindWriteOnlyEnum && d.Attribute != ""
}

// EnumCandidate is one selectable value reported alongside an enum data point.
type EnumCandidate struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// DataPoint is one parameter value returned by a single poll.
type DataPoint struct {
	ID    ID
	Name  string
	Value any
	Enum  []EnumCandidate
}
