package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "heatpump"

// Topics builds the service's MQTT topics under a common prefix:
//
//	{prefix}/state/{device}     retained attribute snapshot
//	{prefix}/command/{device}   inbound write requests
//	{prefix}/ack/{device}       write outcomes
//	{prefix}/health             retained service health
//	{prefix}/system/status      online/offline and LWT
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// DeviceState is the retained attribute snapshot topic for a device.
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix(), deviceID)
}

// DeviceCommand is the topic write requests for a device arrive on.
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix(), deviceID)
}

// AllDeviceCommands matches every device command topic.
func (t Topics) AllDeviceCommands() string {
	return t.Prefix() + "/command/+"
}

// DeviceAck is the topic write outcomes are published on.
func (t Topics) DeviceAck(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s", t.Prefix(), deviceID)
}

// Health is the retained service health topic.
func (t Topics) Health() string {
	return t.Prefix() + "/health"
}

// SystemStatus is the online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// DeviceFromTopic extracts the device ID from a state, command or ack topic.
func (t Topics) DeviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix()+"/")
	if !ok {
		return "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}
	switch parts[0] {
	case "state", "command", "ack":
		return parts[1], true
	}
	return "", false
}
