package heatpump

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/nerrad567/heatpump-sync/internal/estimator"
	"github.com/nerrad567/heatpump-sync/internal/parameter"
	"github.com/nerrad567/heatpump-sync/internal/settings"
)

// updatePowerLocked estimates the current power draw, publishes it and, when
// integrate is set and accumulation is enabled, adds it to the energy total.
//
// Power comes from, in order: the family's native power attribute, the three
// phase currents, or the delta of a cumulative energy parameter. The energy
// delta only advances when integrate is set, so a settings-triggered refresh
// does not consume a meter reading.
func (s *Session) updatePowerLocked(ctx context.Context, integrate bool) {
	values := s.settingsValues()
	now := s.now()

	watts, ok := s.estimatePowerLocked(ctx, values, now, integrate)
	if !ok {
		return
	}
	if !s.catalog.NativePower && s.catalog.PowerAttribute != "" {
		if err := s.attrs.Upsert(s.catalog.PowerAttribute, watts); err != nil {
			s.logger.Warn("failed to publish power", "device_id", s.id, "error", err)
		}
	}

	energy := -1.0
	if accumulate, _ := values.Bool(settings.KeyAccumulate); accumulate && integrate {
		energy = s.accumulator.Add(watts, now)
		if err := s.attrs.Upsert(parameter.AttrEnergy, energy); err != nil {
			s.logger.Warn("failed to publish energy", "device_id", s.id, "error", err)
		}
		if err := s.store.SaveState(s.id, settings.StateEnergyTotal, energy); err != nil {
			s.logger.Warn("failed to persist energy total", "device_id", s.id, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.WriteEnergy(s.id, watts, energy, now)
	}
}

func (s *Session) estimatePowerLocked(ctx context.Context, values settings.Values, now time.Time, integrate bool) (float64, bool) {
	if s.catalog.NativePower {
		return s.attrs.Float(s.catalog.PowerAttribute)
	}

	var currents [3]float64
	for i, name := range s.catalog.Currents {
		currents[i] = math.NaN()
		if v, ok := s.attrs.Float(name); ok {
			currents[i] = v
		}
	}
	if estimator.AnyValidCurrent(currents) {
		voltage, _ := values.Float(settings.KeyVoltage)
		pf, _ := values.Float(settings.KeyPowerFactor)
		return estimator.ThreePhasePower(currents, voltage, pf), true
	}

	if !integrate {
		return 0, false
	}
	id, ok := values.Int(settings.KeyEnergyParameter)
	if !ok || id <= 0 {
		return 0, false
	}
	kwh, ok := s.fetchNumber(ctx, parameter.ID(id))
	if !ok {
		return 0, false
	}
	return s.energyDelta.Update(kwh, now), true
}

// fetchNumber reads one numeric parameter outside the reconcile pipeline.
func (s *Session) fetchNumber(ctx context.Context, id parameter.ID) (float64, bool) {
	values, err := s.fetchNumbers(ctx, []parameter.ID{id})
	if err != nil {
		s.logger.Warn("failed to read parameter", "device_id", s.id, "parameter", id, "error", err)
		return 0, false
	}
	v, ok := values[id]
	return v, ok
}

func (s *Session) fetchNumbers(ctx context.Context, ids []parameter.ID) (map[parameter.ID]float64, error) {
	points, err := s.remote.FetchDataPoints(ctx, s.id, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[parameter.ID]float64, len(points))
	for _, p := range points {
		v, err := ToFloat(p.Value)
		if err != nil {
			s.logger.Debug("non-numeric parameter ignored", "device_id", s.id, "parameter", p.ID, "value", p.Value)
			continue
		}
		out[p.ID] = v
	}
	return out, nil
}

// refreshPower re-reads the phase currents and republishes the power
// estimate without integrating energy.
func (s *Session) refreshPower(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.catalog.NativePower {
		if ids := s.currentIDs(s.eff.Load()); len(ids) > 0 {
			if _, err := s.reconcileLocked(ctx, ids); err != nil {
				s.logger.Warn("failed to refresh currents", "device_id", s.id, "error", err)
			}
		}
	}
	s.updatePowerLocked(ctx, false)
}

func (s *Session) restoreEnergyTotal() {
	total, err := s.store.LoadState(s.id, settings.StateEnergyTotal)
	if err != nil {
		if !errors.Is(err, settings.ErrNotFound) {
			s.logger.Warn("failed to load energy total", "device_id", s.id, "error", err)
		}
		return
	}
	s.mu.Lock()
	s.accumulator = estimator.NewAccumulator(total)
	s.mu.Unlock()
	if err := s.attrs.Upsert(parameter.AttrEnergy, total); err != nil {
		s.logger.Warn("failed to publish energy", "device_id", s.id, "error", err)
	}
}
