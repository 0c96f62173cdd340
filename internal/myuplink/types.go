package myuplink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
)

// flexNumber decodes a JSON number that may be sent as a string.
type flexNumber struct {
	value float64
	valid bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = flexNumber{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = flexNumber{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*f = flexNumber{value: v, valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexNumber{value: v, valid: true}
	return nil
}

type enumValue struct {
	Value flexNumber `json:"value"`
	Text  string     `json:"text"`
}

// point is the wire shape of one data point.
type point struct {
	ParameterID   flexNumber      `json:"parameterId"`
	ParameterName string          `json:"parameterName"`
	ParameterUnit string          `json:"parameterUnit"`
	Writable      bool            `json:"writable"`
	Timestamp     string          `json:"timestamp"`
	Value         json.RawMessage `json:"value"`
	StrVal        string          `json:"strVal"`
	EnumValues    []enumValue     `json:"enumValues"`
}

// toDataPoint converts the wire shape. Points without a usable identifier
// are reported with ok=false.
func (p point) toDataPoint() (parameter.DataPoint, bool) {
	if !p.ParameterID.valid || p.ParameterID.value <= 0 {
		return parameter.DataPoint{}, false
	}

	dp := parameter.DataPoint{
		ID:   parameter.ID(p.ParameterID.value),
		Name: p.ParameterName,
	}

	var raw any
	if len(p.Value) > 0 {
		dec := json.NewDecoder(bytes.NewReader(p.Value))
		dec.UseNumber()
		if err := dec.Decode(&raw); err == nil {
			if n, ok := raw.(json.Number); ok {
				if f, err := n.Float64(); err == nil {
					raw = f
				}
			}
		}
	}
	dp.Value = raw

	for _, ev := range p.EnumValues {
		if !ev.Value.valid {
			continue
		}
		dp.Enum = append(dp.Enum, parameter.EnumCandidate{Value: ev.Value.value, Label: ev.Text})
	}
	return dp, true
}

// DeviceInfo is the subset of GET /v2/devices/{id} the sync core uses.
type DeviceInfo struct {
	ID              string `json:"id"`
	ConnectionState string `json:"connectionState"`
	Firmware        struct {
		CurrentFwVersion string `json:"currentFwVersion"`
		DesiredFwVersion string `json:"desiredFwVersion"`
	} `json:"firmware"`
	Product struct {
		SerialNumber string `json:"serialNumber"`
		Name         string `json:"name"`
	} `json:"product"`
}

// SystemDevice is a device listed under the authenticated user's systems.
type SystemDevice struct {
	SystemID        string `json:"system_id"`
	SystemName      string `json:"system_name"`
	DeviceID        string `json:"device_id"`
	ProductName     string `json:"product_name"`
	SerialNumber    string `json:"serial_number"`
	ConnectionState string `json:"connection_state"`
}

type systemsResponse struct {
	Systems []struct {
		SystemID string `json:"systemId"`
		Name     string `json:"name"`
		Devices  []struct {
			ID              string `json:"id"`
			ConnectionState string `json:"connectionState"`
			Product         struct {
				SerialNumber string `json:"serialNumber"`
				Name         string `json:"name"`
			} `json:"product"`
		} `json:"devices"`
	} `json:"systems"`
}
