package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThreePhasePower(t *testing.T) {
	tests := []struct {
		name     string
		currents [3]float64
		voltage  float64
		pf       float64
		want     float64
	}{
		{"balanced 10A", [3]float64{10, 10, 10}, 400, 0.95, 400 / math.Sqrt(3) * 30 * 0.95},
		{"unbalanced", [3]float64{5, 0, 2.5}, 400, 1, 400 / math.Sqrt(3) * 7.5},
		{"NaN phase counts as zero", [3]float64{10, math.NaN(), 10}, 400, 0.95, 400 / math.Sqrt(3) * 20 * 0.95},
		{"all invalid", [3]float64{math.NaN(), math.Inf(1), math.Inf(-1)}, 400, 0.95, 0},
		{"defaults when unset", [3]float64{1, 1, 1}, 0, 0, DefaultVoltage / math.Sqrt(3) * 3 * DefaultPowerFactor},
		{"230V", [3]float64{4, 4, 4}, 230, 0.9, 230 / math.Sqrt(3) * 12 * 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ThreePhasePower(tt.currents, tt.voltage, tt.pf), 1e-9)
		})
	}
}

func TestThreePhasePowerReferenceValue(t *testing.T) {
	assert.InDelta(t, 6582.6, ThreePhasePower([3]float64{10, 10, 10}, 400, 0.95), 0.1)
}

func TestAnyValidCurrent(t *testing.T) {
	assert.True(t, AnyValidCurrent([3]float64{math.NaN(), 0, math.NaN()}))
	assert.False(t, AnyValidCurrent([3]float64{math.NaN(), math.NaN(), math.Inf(1)}))
}

func TestEnergyDelta(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("first reading primes", func(t *testing.T) {
		var e EnergyDelta
		assert.Equal(t, 0.0, e.Update(100.0, t0))
	})

	t.Run("half kWh over thirty minutes", func(t *testing.T) {
		var e EnergyDelta
		e.Update(100.0, t0)
		assert.InDelta(t, 1000.0, e.Update(100.5, t0.Add(30*time.Minute)), 1e-9)
	})

	t.Run("non-positive elapsed", func(t *testing.T) {
		var e EnergyDelta
		e.Update(100.0, t0)
		assert.Equal(t, 0.0, e.Update(101.0, t0))
		assert.Equal(t, 0.0, e.Update(101.0, t0.Add(-time.Minute)))
		// Baseline is untouched, so the next valid step still measures from t0.
		assert.InDelta(t, 2000.0, e.Update(101.0, t0.Add(30*time.Minute)), 1e-9)
	})

	t.Run("negative delta re-primes", func(t *testing.T) {
		var e EnergyDelta
		e.Update(100.0, t0)
		assert.Equal(t, 0.0, e.Update(5.0, t0.Add(time.Hour)))
		assert.InDelta(t, 500.0, e.Update(5.5, t0.Add(2*time.Hour)), 1e-9)
	})

	t.Run("implausible power is zeroed", func(t *testing.T) {
		var e EnergyDelta
		e.Update(100.0, t0)
		assert.Equal(t, 0.0, e.Update(130.0, t0.Add(time.Hour)))
	})

	t.Run("reset", func(t *testing.T) {
		var e EnergyDelta
		e.Update(100.0, t0)
		e.Reset()
		assert.Equal(t, 0.0, e.Update(100.5, t0.Add(30*time.Minute)))
	})
}

func TestAccumulator(t *testing.T) {
	t0 := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	t.Run("first call records baseline", func(t *testing.T) {
		a := NewAccumulator(10)
		assert.Equal(t, 10.0, a.Add(2000, t0))
	})

	t.Run("integrates power", func(t *testing.T) {
		a := NewAccumulator(0)
		a.Add(2000, t0)
		assert.InDelta(t, 0.5, a.Add(2000, t0.Add(15*time.Minute)), 1e-9)
		assert.InDelta(t, 1.0, a.Add(2000, t0.Add(30*time.Minute)), 1e-9)
	})

	t.Run("rounds to three decimals", func(t *testing.T) {
		a := NewAccumulator(0)
		a.Add(1000, t0)
		assert.Equal(t, 0.017, a.Add(1000, t0.Add(time.Minute)))
	})

	t.Run("skips gaps over an hour", func(t *testing.T) {
		a := NewAccumulator(3)
		a.Add(5000, t0)
		assert.Equal(t, 3.0, a.Add(5000, t0.Add(90*time.Minute)))
		assert.InDelta(t, 3.5, a.Add(6000, t0.Add(95*time.Minute)), 1e-9)
	})

	t.Run("ignores non-positive elapsed", func(t *testing.T) {
		a := NewAccumulator(1)
		a.Add(1000, t0)
		assert.Equal(t, 1.0, a.Add(1000, t0))
		assert.Equal(t, 1.0, a.Total())
	})
}
