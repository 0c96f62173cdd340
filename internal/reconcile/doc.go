// Package reconcile turns polled heat pump data points into attribute updates.
//
// One Pipeline exists per device. Each Reconcile call:
//
//  1. fetches the requested identifiers from the remote side
//  2. decodes every returned point according to its descriptor kind
//  3. resolves enumerations against the candidates sent with the point
//  4. selects the active target setpoint source (primary or alternate)
//  5. publishes fallback sources under their primary attribute
//  6. adds, updates and removes attributes to match what was reported
//
// A decode or store error for one point is logged and skipped. A failed
// fetch aborts the cycle and is returned. A not-found fetch is treated as an
// empty report so unreported attributes are removed.
//
// Pipeline state (setpoint mode, fallback flags, identifiers ever seen, the
// enum option cache) belongs to its device. Callers serialise Reconcile per
// device; the enum cache may be read concurrently.
package reconcile
