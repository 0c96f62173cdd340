package parameter

import (
	"slices"
	"sort"
)

// Settings is the read-only view of device settings consulted by Resolve.
type Settings interface {
	Int(key string) (int, bool)
}

// AppliedOverride records one override that changed the effective map.
type AppliedOverride struct {
	Setting   string `json:"setting"`
	From      ID     `json:"from"`
	To        ID     `json:"to"`
	Attribute string `json:"attribute"`
}

// EffectiveMap is the parameter mapping in effect after overrides.
// It is never mutated after Resolve returns.
type EffectiveMap struct {
	descriptors map[ID]Descriptor
	monitored   []ID
	remap       map[ID]ID
	applied     []AppliedOverride
	conflicts   []AppliedOverride
}

// Lookup returns the descriptor registered for id.
func (m *EffectiveMap) Lookup(id ID) (Descriptor, bool) {
	d, ok := m.descriptors[id]
	return d, ok
}

// Monitored returns a copy of the ordered identifiers to poll.
func (m *EffectiveMap) Monitored() []ID {
	return slices.Clone(m.monitored)
}

// Effective returns the identifier that replaced id, or id itself.
func (m *EffectiveMap) Effective(id ID) ID {
	if to, ok := m.remap[id]; ok {
		return to
	}
	return id
}

// Remap returns a copy of the default→override identifier mapping.
func (m *EffectiveMap) Remap() map[ID]ID {
	out := make(map[ID]ID, len(m.remap))
	for k, v := range m.remap {
		out[k] = v
	}
	return out
}

// Applied returns the overrides that changed the map, in catalog order.
func (m *EffectiveMap) Applied() []AppliedOverride {
	return slices.Clone(m.applied)
}

// Conflicts returns the overrides skipped because their target identifier
// already carries a descriptor, in catalog order.
func (m *EffectiveMap) Conflicts() []AppliedOverride {
	return slices.Clone(m.conflicts)
}

// Descriptors returns all effective descriptors sorted by identifier.
func (m *EffectiveMap) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of effective descriptors.
func (m *EffectiveMap) Len() int {
	return len(m.descriptors)
}

// Resolve applies identifier overrides from settings to the catalog.
//
// For every override whose setting holds a non-zero identifier different from
// its default, the default descriptor is moved to the configured identifier in
// both the map and the monitored list. Missing or zero settings are no-ops.
// An override whose target already has a descriptor is skipped and reported
// by Conflicts. A default without a descriptor is still swapped in the
// monitored list. Resolve always starts from the catalog, so repeated calls with the same
// settings produce identical maps.
//
// Parameters:
//   - catalog: Static family catalog
//   - monitored: Default identifiers to poll, in order
//   - overrides: Configurable overrides (normally catalog.Overrides)
//   - settings: Current device settings (may be nil)
//
// Returns:
//   - *EffectiveMap: Fresh map for the caller to swap in
func Resolve(catalog *Catalog, monitored []ID, overrides []Override, settings Settings) *EffectiveMap {
	m := &EffectiveMap{
		descriptors: make(map[ID]Descriptor, len(catalog.Descriptors)),
		monitored:   slices.Clone(monitored),
		remap:       make(map[ID]ID),
	}
	for _, d := range catalog.Descriptors {
		m.descriptors[d.ID] = d
	}

	if settings == nil {
		return m
	}

	for _, o := range overrides {
		configured, ok := settings.Int(o.Setting)
		if !ok || configured <= 0 || ID(configured) == o.Default {
			continue
		}
		to := ID(configured)

		desc, known := m.descriptors[o.Default]
		if existing, taken := m.descriptors[to]; taken {
			m.conflicts = append(m.conflicts, AppliedOverride{
				Setting:   o.Setting,
				From:      o.Default,
				To:        to,
				Attribute: existing.Attribute,
			})
			continue
		}
		if known {
			delete(m.descriptors, o.Default)
			desc.ID = to
			m.descriptors[to] = desc
		}

		m.monitored = replaceID(m.monitored, o.Default, to)
		m.remap[o.Default] = to
		m.applied = append(m.applied, AppliedOverride{
			Setting:   o.Setting,
			From:      o.Default,
			To:        to,
			Attribute: desc.Attribute,
		})
	}

	return m
}

// replaceID swaps from for to in ids, dropping a later duplicate of to.
func replaceID(ids []ID, from, to ID) []ID {
	out := make([]ID, 0, len(ids))
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		if id == from {
			id = to
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// MapSettings is a fixed Settings backed by a map.
type MapSettings map[string]int

// Int implements Settings.
func (s MapSettings) Int(key string) (int, bool) {
	v, ok := s[key]
	return v, ok
}
