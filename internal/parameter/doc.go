// Package parameter describes the remote heat pump parameters a device family
// can report and resolves the identifier set that is actually polled.
//
// A Catalog is static: it lists every Descriptor for a family (F-series or
// S-series), the identifiers polled by default, and the user-configurable
// identifier overrides. Resolve applies the current settings to a Catalog and
// produces an EffectiveMap, which callers swap in atomically.
//
// # Usage
//
//	cat := parameter.FSeries()
//	eff := parameter.Resolve(cat, cat.Monitored, cat.Overrides, settings)
//	desc, ok := eff.Lookup(40004)
package parameter
