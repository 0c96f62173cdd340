package estimator

import (
	"math"
	"time"
)

const (
	// MaxPlausiblePower is the upper bound of trusted energy-delta estimates.
	MaxPlausiblePower = 20000.0

	// MaxAccumulationGap is the largest elapsed time integrated in one step.
	MaxAccumulationGap = time.Hour

	// energyPrecision is the number of decimals kept in the accumulated total.
	energyPrecision = 3
)

// EnergyDelta estimates power from successive cumulative energy readings.
type EnergyDelta struct {
	lastValue float64
	lastAt    time.Time
	primed    bool
}

// Update records a cumulative reading in kWh taken at ts and returns the
// average power in watts since the previous reading.
//
// The first reading only primes the baseline and returns 0. Non-positive
// elapsed time returns 0 without moving the baseline. A negative delta (meter
// reset) returns 0 and re-primes. Results outside [0, MaxPlausiblePower] are
// reported as 0.
func (e *EnergyDelta) Update(kwh float64, ts time.Time) float64 {
	if !finite(kwh) {
		return 0
	}
	if !e.primed {
		e.lastValue, e.lastAt, e.primed = kwh, ts, true
		return 0
	}

	elapsed := ts.Sub(e.lastAt)
	if elapsed <= 0 {
		return 0
	}

	delta := kwh - e.lastValue
	e.lastValue, e.lastAt = kwh, ts
	if delta < 0 {
		return 0
	}

	watts := delta * 1000 / elapsed.Hours()
	if watts < 0 || watts > MaxPlausiblePower {
		return 0
	}
	return watts
}

// Reset forgets the baseline.
func (e *EnergyDelta) Reset() {
	*e = EnergyDelta{}
}

// Accumulator integrates power into a running energy total in kWh.
type Accumulator struct {
	total  float64
	lastAt time.Time
	primed bool
}

// NewAccumulator returns an accumulator starting from total kWh.
func NewAccumulator(total float64) *Accumulator {
	return &Accumulator{total: total}
}

// Add integrates watts over the time since the previous call and returns the
// new total. The first call only records the baseline. Gaps that are not
// positive or exceed MaxAccumulationGap are skipped.
func (a *Accumulator) Add(watts float64, ts time.Time) float64 {
	if !a.primed {
		a.lastAt, a.primed = ts, true
		return a.total
	}

	elapsed := ts.Sub(a.lastAt)
	if elapsed <= 0 {
		return a.total
	}
	a.lastAt = ts
	if elapsed > MaxAccumulationGap || !finite(watts) || watts < 0 {
		return a.total
	}

	a.total = round(a.total+watts/1000*elapsed.Hours(), energyPrecision)
	return a.total
}

// Total returns the accumulated energy in kWh.
func (a *Accumulator) Total() float64 {
	return a.total
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
