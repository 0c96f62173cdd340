package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/heatpump-sync/internal/settings"
)

// readOnlySettings are reported by the device and cannot be patched.
var readOnlySettings = map[string]bool{
	settings.KeySerialNumber: true,
	settings.KeyFirmware:     true,
}

// handleGetSettings returns a device's settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionFor(w, r); !ok {
		return
	}
	values, err := s.settings.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeInternalError(w, "failed to read settings")
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// handlePatchSettings merges the body into a device's settings. A null value
// removes the key. The response lists the keys that changed and the result.
func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionFor(w, r); !ok {
		return
	}
	deviceID := chi.URLParam(r, "id")

	var updates settings.Values
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(updates) == 0 {
		writeBadRequest(w, "no settings given")
		return
	}
	if err := validateSettings(updates); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	changed, err := s.settings.Put(deviceID, updates)
	if err != nil {
		s.logger.Error("failed to store settings", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to store settings")
		return
	}
	values, err := s.settings.Get(deviceID)
	if err != nil {
		writeInternalError(w, "failed to read settings")
		return
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"settings": values,
	})
}

// validateSettings checks the known keys of a settings patch.
func validateSettings(updates settings.Values) error {
	for key, v := range updates {
		if readOnlySettings[key] {
			return fmt.Errorf("%s is read-only", key)
		}
		if v == nil {
			continue
		}
		switch {
		case key == settings.KeyPollInterval:
			if n, ok := updates.Int(key); !ok || n < 1 {
				return fmt.Errorf("%s must be a whole number of minutes, at least 1", key)
			}
		case key == settings.KeyVoltage:
			if f, ok := updates.Float(key); !ok || f <= 0 {
				return fmt.Errorf("%s must be positive", key)
			}
		case key == settings.KeyPowerFactor:
			if f, ok := updates.Float(key); !ok || f <= 0 || f > 1 {
				return fmt.Errorf("%s must be in (0, 1]", key)
			}
		case key == settings.KeyOperationalMode:
			if n, ok := updates.Int(key); !ok || n < 0 || n > 3 {
				return fmt.Errorf("%s must be 0..3", key)
			}
		case key == settings.KeyEnergyParameter || strings.HasPrefix(key, "param_"):
			if n, ok := updates.Int(key); !ok || n <= 0 {
				return fmt.Errorf("%s must be a positive parameter id", key)
			}
		case key == settings.KeyAccumulate:
			if _, ok := updates.Bool(key); !ok {
				return fmt.Errorf("%s must be a boolean", key)
			}
		case key == settings.KeyHeatingCurve || key == settings.KeyHeatingOffset:
			if _, ok := updates.Float(key); !ok {
				return fmt.Errorf("%s must be a number", key)
			}
		}
	}
	return nil
}
