package heatpump

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// CommandMessage requests a parameter write on one device.
// Topic: heatpump/command/{device}
//
// Exactly one of Attribute or ParameterID selects the target. Attribute goes
// through the writable attribute map; ParameterID is written as-is.
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated when empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued.
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Attribute is a writable attribute name (e.g. "target_temperature.room").
	Attribute string `json:"attribute,omitempty"`

	// ParameterID is a raw remote parameter identifier.
	ParameterID int `json:"parameter_id,omitempty"`

	// Value is the value to write. Booleans are sent as 0/1.
	Value any `json:"value"`

	// Source indicates where the command originated ("mqtt" when empty).
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	// AckAccepted indicates the write was applied by the remote device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the write was rejected, failed or cleared.
	AckFailed AckStatus = "failed"
)

// AckMessage is published once the write behind a command settles.
// Topic: heatpump/ack/{device}
type AckMessage struct {
	CommandID   string    `json:"command_id"`
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"device_id"`
	Status      AckStatus `json:"status"`
	ParameterID int       `json:"parameter_id,omitempty"`
	Error       *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeNotConfigured  = "NOT_CONFIGURED"
	ErrCodeNotWritable    = "NOT_WRITABLE"
	ErrCodeWriteFailed    = "WRITE_FAILED"
	ErrCodeCleared        = "CLEARED"
)

// StateMessage is the retained attribute snapshot of one device.
// Topic: heatpump/state/{device}
type StateMessage struct {
	DeviceID   string         `json:"device_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates every session polled successfully last time.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates MQTT is down or a session's last poll failed.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: heatpump/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Timestamp      time.Time      `json:"timestamp"`
	Status         HealthStatus   `json:"status"`
	Version        string         `json:"version"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	DevicesManaged int            `json:"devices_managed"`
	Devices        []DeviceHealth `json:"devices,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// DeviceHealth is the per-session part of a health message.
type DeviceHealth struct {
	DeviceID     string     `json:"device_id"`
	LastPoll     *time.Time `json:"last_poll,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Polls        int64      `json:"polls"`
	PendingWrite int        `json:"pending_writes"`
}

// NewHealthMessage creates a health message.
func NewHealthMessage(version string, status HealthStatus, devices []DeviceHealth, startTime time.Time) HealthMessage {
	return HealthMessage{
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: len(devices),
		Devices:        devices,
	}
}

// ToFloat converts a command or API value to the numeric form written to the
// remote device. Booleans become 0/1; numeric strings are parsed.
func ToFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, n)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, f)
	}
	return f, nil
}
