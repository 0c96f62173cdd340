package heatpump

import "github.com/nerrad567/heatpump-sync/internal/parameter"

// OperationalMode is the single user-facing mode behind the F-series
// operation mode, heating addition and electricity addition parameters.
type OperationalMode int

// Operational modes.
const (
	ModeAuto           OperationalMode = 0
	ModeManualElectric OperationalMode = 1
	ModeManualHeating  OperationalMode = 2
	ModeAdditionOnly   OperationalMode = 3
)

type modeTriple struct {
	opMode, heatAdd, elecAdd float64
}

var modeTable = map[OperationalMode]modeTriple{
	ModeAuto:           {0, 0, 0},
	ModeManualElectric: {1, 0, 1},
	ModeManualHeating:  {1, 1, 0},
	ModeAdditionOnly:   {2, 0, 0},
}

// opModeIDs are read and written together.
var opModeIDs = []parameter.ID{
	parameter.FOperationMode,
	parameter.FHeatingAddition,
	parameter.FElectricityAddition,
}

// InterpretOperationalMode maps the three raw parameter values to a mode.
// Combinations outside the table read as ModeAuto.
func InterpretOperationalMode(opMode, heatAdd, elecAdd float64) OperationalMode {
	for mode, t := range modeTable {
		if t.opMode == opMode && t.heatAdd == heatAdd && t.elecAdd == elecAdd {
			return mode
		}
	}
	return ModeAuto
}

// BuildOperationalMode returns the parameter values that select mode.
// Unknown modes build all zeros.
func BuildOperationalMode(mode OperationalMode) map[parameter.ID]float64 {
	t := modeTable[mode]
	return map[parameter.ID]float64{
		parameter.FOperationMode:       t.opMode,
		parameter.FHeatingAddition:     t.heatAdd,
		parameter.FElectricityAddition: t.elecAdd,
	}
}

// supportsOperationalMode reports whether the catalog carries the mode triple.
func supportsOperationalMode(c *parameter.Catalog) bool {
	for _, id := range opModeIDs {
		if _, ok := c.Descriptor(id); !ok {
			return false
		}
	}
	return true
}
