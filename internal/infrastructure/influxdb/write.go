package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementAttribute = "heatpump_attribute"
	MeasurementEnergy    = "heatpump_energy"
	MeasurementSync      = "heatpump_sync"
)

// SyncStats summarises one reconciliation for the sync measurement.
type SyncStats struct {
	Requested int
	Returned  int
	Updated   int
	Removed   int
	Errors    int
	Duration  time.Duration
	Failed    bool
}

// WriteAttribute records a numeric attribute value.
func (c *Client) WriteAttribute(deviceID, attribute string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(attributePoint(deviceID, attribute, value, ts))
}

// WriteEnergy records the estimated power and, when known, the energy total.
// A negative energyKWh means the total is unknown.
func (c *Client) WriteEnergy(deviceID string, powerWatts, energyKWh float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(energyPoint(deviceID, powerWatts, energyKWh, ts))
}

// WriteSync records reconciliation statistics.
func (c *Client) WriteSync(deviceID string, s SyncStats, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(syncPoint(deviceID, s, ts))
}

func attributePoint(deviceID, attribute string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementAttribute,
		map[string]string{"device_id": deviceID, "attribute": attribute},
		map[string]interface{}{"value": value},
		ts)
}

func energyPoint(deviceID string, powerWatts, energyKWh float64, ts time.Time) *write.Point {
	fields := map[string]interface{}{"power_watts": powerWatts}
	if energyKWh >= 0 {
		fields["energy_kwh"] = energyKWh
	}
	return write.NewPoint(MeasurementEnergy, map[string]string{"device_id": deviceID}, fields, ts)
}

func syncPoint(deviceID string, s SyncStats, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementSync,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{
			"requested":   s.Requested,
			"returned":    s.Returned,
			"updated":     s.Updated,
			"removed":     s.Removed,
			"errors":      s.Errors,
			"duration_ms": s.Duration.Milliseconds(),
			"failed":      s.Failed,
		},
		ts)
}
