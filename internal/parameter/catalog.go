package parameter

import "fmt"

// Family identifies a heat pump product line.
type Family string

// Supported families.
const (
	FamilyF Family = "f-series"
	FamilyS Family = "s-series"
)

// Override is a user-configurable identifier replacement. When the setting
// named Setting holds a non-zero identifier different from Default, the
// descriptor registered under Default is moved to that identifier.
type Override struct {
	Setting string `json:"setting"`
	Default ID     `json:"default"`
}

// SetpointRule describes two identifiers that both report the target setpoint.
// The alternate wins whenever it reports a valid number.
type SetpointRule struct {
	Primary   ID
	Alternate ID
	Attribute string
}

// FallbackRule publishes Secondary under Primary's attribute when Primary is
// absent or outside [Min, Max]. Secondary's own attribute is never published.
type FallbackRule struct {
	Primary   ID
	Secondary ID
	Min       float64
	Max       float64
}

// Valid reports whether v is inside the rule's range.
func (r FallbackRule) Valid(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Currents names the three phase current attributes used by the power estimator.
type Currents [3]string

// Catalog is the static parameter description of one family.
type Catalog struct {
	Family      Family
	Descriptors []Descriptor
	Monitored   []ID
	Overrides   []Override

	// Writable maps user-writable attribute names to their parameter.
	Writable map[string]ID

	Setpoint  *SetpointRule
	Fallbacks []FallbackRule

	// Unsupported lists attributes removed at session start.
	Unsupported []string

	Currents       Currents
	PowerAttribute string
	// NativePower is set when the family reports its own instantaneous power.
	NativePower bool
}

// Descriptor returns the catalog descriptor for id.
func (c *Catalog) Descriptor(id ID) (Descriptor, bool) {
	for _, d := range c.Descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ForFamily returns the catalog for the named family.
func ForFamily(f Family) (*Catalog, error) {
	switch f {
	case FamilyF, "":
		return FSeries(), nil
	case FamilyS:
		return SSeries(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
}
