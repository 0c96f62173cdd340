// Package influxdb writes heat pump telemetry to InfluxDB v2.
//
// Three measurements are written:
//   - heatpump_attribute: every numeric attribute after a reconciliation
//   - heatpump_energy: estimated power and accumulated energy
//   - heatpump_sync: per-cycle reconciliation statistics
//
// InfluxDB is optional. Connect returns ErrDisabled when it is switched off
// and callers continue without a metrics sink.
package influxdb
