// Package mqtt connects heatpump-sync to an MQTT broker.
//
// The bridge publishes retained attribute snapshots per device, accepts
// write commands and answers them with acknowledgements once the write
// queue settles the request. The client publishes a retained online status
// on connect, a graceful offline status on Close and registers a Last Will
// so that consumers see the service disappear after a crash.
//
// Handlers run on paho's goroutines and are wrapped with panic recovery.
package mqtt
