package heatpump

import (
	"context"
	"slices"
	"strings"

	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/settings"
)

// sourceSettings marks writes triggered by a settings change.
const sourceSettings = "settings"

// syncedSettings maps settings mirrored from the device to the writable
// attribute that names their parameter.
var syncedSettings = map[string]string{
	settings.KeyHeatingCurve:  parameter.AttrHeatingCurve,
	settings.KeyHeatingOffset: parameter.AttrHeatingOffset,
}

// syncSettingsLocked refreshes the heating curve, heating offset and (where
// supported) operational mode settings from the device.
func (s *Session) syncSettingsLocked(ctx context.Context) {
	keyByID := make(map[parameter.ID]string, len(syncedSettings))
	var ids []parameter.ID
	for key, attr := range syncedSettings {
		if id, ok := s.catalog.Writable[attr]; ok {
			keyByID[id] = key
			ids = append(ids, id)
		}
	}
	if s.opMode {
		ids = append(ids, opModeIDs...)
	}
	if len(ids) == 0 {
		return
	}
	slices.Sort(ids)

	values, err := s.fetchNumbers(ctx, ids)
	if err != nil {
		s.logger.Warn("settings sync failed", "device_id", s.id, "error", err)
		return
	}

	updates := settings.Values{}
	s.remoteMu.Lock()
	for id, key := range keyByID {
		if v, ok := values[id]; ok {
			s.remoteSettings[key] = v
			updates[key] = v
		}
	}
	if s.opMode {
		op, ok1 := values[parameter.FOperationMode]
		heat, ok2 := values[parameter.FHeatingAddition]
		elec, ok3 := values[parameter.FElectricityAddition]
		if ok1 && ok2 && ok3 {
			mode := InterpretOperationalMode(op, heat, elec)
			s.remoteSettings[settings.KeyOperationalMode] = float64(mode)
			updates[settings.KeyOperationalMode] = int(mode)
		}
	}
	s.remoteMu.Unlock()

	if len(updates) == 0 {
		return
	}
	if _, err := s.store.Put(s.id, updates); err != nil {
		s.logger.Warn("failed to store synced settings", "device_id", s.id, "error", err)
	}
}

// HandleSettingsChange applies a committed settings change.
//
//   - Poll interval: the poll timer restarts with the new interval.
//   - Voltage or power factor: currents are re-read and power republished.
//   - Identifier overrides: the effective map is rebuilt and swapped in
//     atomically, then a full reconcile runs.
//   - Heating curve, heating offset, operational mode: written to the device
//     unless the new value is what the device last reported.
//
// It never takes the device lock itself, so it may be called from inside a
// settings sync.
func (s *Session) HandleSettingsChange(changed []string, values settings.Values) {
	if s.closed.Load() || len(changed) == 0 {
		return
	}

	var overrides, power bool
	for _, key := range changed {
		switch {
		case key == settings.KeyPollInterval:
			if s.started.Load() {
				s.restartPolling(s.pollInterval(values))
			}
		case key == settings.KeyVoltage || key == settings.KeyPowerFactor:
			power = true
		case strings.HasPrefix(key, "param_"):
			overrides = true
		case key == settings.KeyOperationalMode:
			s.writeOperationalMode(values)
		default:
			if attr, ok := syncedSettings[key]; ok {
				s.writeSyncedSetting(key, attr, values)
			}
		}
	}

	if overrides {
		s.rebuildEffectiveMap(values)
		s.logger.Info("parameter overrides changed, running full reconcile", "device_id", s.id)
		s.runAsync(func(ctx context.Context) {
			if _, err := s.Reconcile(ctx, nil); err != nil {
				s.logger.Warn("reconcile after override change failed", "device_id", s.id, "error", err)
			}
		})
	}
	if power {
		s.runAsync(s.refreshPower)
	}
}

func (s *Session) writeSyncedSetting(key, attr string, values settings.Values) {
	v, ok := values.Float(key)
	if !ok || s.matchesRemote(key, v) {
		return
	}
	id, ok := s.catalog.Writable[attr]
	if !ok {
		return
	}
	if _, err := s.SubmitWrite(id, v, sourceSettings); err != nil {
		s.logger.Warn("failed to queue setting write", "device_id", s.id, "setting", key, "error", err)
	}
}

func (s *Session) writeOperationalMode(values settings.Values) {
	if !s.opMode {
		return
	}
	mode, ok := values.Int(settings.KeyOperationalMode)
	if !ok || s.matchesRemote(settings.KeyOperationalMode, float64(mode)) {
		return
	}
	payload := BuildOperationalMode(OperationalMode(mode))
	for _, id := range opModeIDs {
		if _, err := s.SubmitWrite(id, payload[id], sourceSettings); err != nil {
			s.logger.Warn("failed to queue operational mode write", "device_id", s.id, "error", err)
			return
		}
	}
	s.logger.Info("operational mode change queued", "device_id", s.id, "mode", mode)
}

func (s *Session) matchesRemote(key string, v float64) bool {
	s.remoteMu.Lock()
	defer s.remoteMu.Unlock()
	remote, ok := s.remoteSettings[key]
	return ok && remote == v
}

// runAsync runs fn on a session goroutine that Close waits for. Remote calls
// started by fn run to completion or timeout even if the session closes.
func (s *Session) runAsync(fn func(ctx context.Context)) {
	if s.closed.Load() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), pollTimeout)
		defer cancel()
		fn(ctx)
	}()
}
