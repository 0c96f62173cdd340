// Package settings persists per-device user settings in a bbolt file.
//
// Values are stored as JSON under one nested bucket per device. The store
// notifies listeners with the keys that actually changed so that the bridge
// can rebuild the effective parameter map, restart the poll timer or rerun
// the estimators as needed. A separate state bucket keeps small numeric
// values that must survive restarts, such as the accumulated energy total.
package settings
