// Package estimator derives power and energy metrics from heat pump readings.
//
// ThreePhasePower computes instantaneous power from phase currents.
// EnergyDelta estimates power from a cumulative energy counter when no current
// readings are available, and Accumulator integrates power back into a
// running energy total. Both stateful types belong to a single device session
// and are not safe for concurrent use; the session mutex serialises them.
package estimator
