// Package heatpump runs the per-device synchronisation sessions and exposes
// them over MQTT.
//
// A Session owns everything that belongs to one heat pump: the effective
// parameter map, the attribute store, the reconcile pipeline, the write queue
// and the derived-metric estimators. All reconcile work for a device is
// serialised by the session mutex, so a poll, a post-write re-poll and a
// settings-triggered refresh never interleave.
//
// The Bridge owns the sessions for every configured device. It:
//   - Subscribes to heatpump/command/+ and turns commands into queued writes
//   - Publishes a retained state snapshot after each changing reconcile
//   - Acknowledges every command once its write settles
//   - Reports bridge health on heatpump/health
//
// Thread Safety: Session and Bridge methods are safe for concurrent use.
package heatpump
