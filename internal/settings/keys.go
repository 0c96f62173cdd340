package settings

// Well-known setting keys. Identifier overrides use the "param_" keys named in
// the parameter catalogs.
const (
	KeyPollInterval    = "poll_interval_minutes"
	KeyVoltage         = "voltage"
	KeyPowerFactor     = "power_factor"
	KeyHeatingCurve    = "heating_curve"
	KeyHeatingOffset   = "heating_offset_climate_system_1"
	KeyOperationalMode = "operational_mode"
	KeySerialNumber    = "serial_number"
	KeyFirmware        = "firmware"
	KeyEnergyParameter = "energy_parameter"
	KeyAccumulate      = "accumulate_energy"
)

// State keys.
const (
	StateEnergyTotal = "energy_total_kwh"
)
