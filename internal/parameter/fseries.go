package parameter

// F-series parameter identifiers.
const (
	FOutdoorTemp          ID = 40004
	FHeatingMediumSupply  ID = 40008
	FReturnLineTemp       ID = 40012
	FHotWaterTop          ID = 40013
	FHotWaterCharging     ID = 40014
	FCondenserTemp        ID = 40017
	FSuctionGasTemp       ID = 40022
	FExhaustAirTemp       ID = 40025
	FExtractAirTemp       ID = 40026
	FRoomTemp             ID = 40033
	FSupplyLine           ID = 40047
	FCurrent1             ID = 40079
	FCurrent2             ID = 40081
	FCurrent3             ID = 40083
	FDegreeMinutes        ID = 40941
	FCompressorFreq       ID = 41778
	FCalculatedSupplyLine ID = 43009
	FTimeHeatAddition     ID = 43081
	FHeatingCurve         ID = 47007
	FOffsetClimateSystem1 ID = 47011
	FSetPointTempF730     ID = 47015
	FOperationMode        ID = 47137
	FElectricityAddition  ID = 47370
	FHeatingAddition      ID = 47371
	FSetPointTemp1        ID = 47398
	FNightCooling         ID = 47537
	FTemporaryLux         ID = 50004
	FIncreasedVentilation ID = 50005
	FCompressorStatus     ID = 50095
	FElectricAddition     ID = 50113
	FExhaustAirFanSpeed   ID = 50221
)

// Attribute names shared by both families.
const (
	AttrTargetTemperature = "target_temperature.room"
	AttrSupplyLine        = "measure_temperature.supply_line"
	AttrPower             = "measure_power"
	AttrEnergy            = "meter_power"
	AttrCurrent1          = "measure_current.one"
	AttrCurrent2          = "measure_current.two"
	AttrCurrent3          = "measure_current.three"
	AttrElectricAddition  = "status_electric_addition"
	AttrHeatingCurve      = "measure_heating_curve"
	AttrHeatingOffset     = "measure_offset_climate_system_1"
)

// FSeries returns the F-series catalog.
func FSeries() *Catalog {
	return &Catalog{
		Family: FamilyF,
		Descriptors: []Descriptor{
			{ID: FOutdoorTemp, Kind: KindNumber, Attribute: "measure_temperature.outdoor", Name: "Outdoor Temperature (BT1)", Unit: "°C"},
			{ID: FHeatingMediumSupply, Kind: KindNumber, Attribute: "measure_temperature.heating_supply", Name: "Heating Medium Supply (BT63)", Unit: "°C"},
			{ID: FReturnLineTemp, Kind: KindNumber, Attribute: "measure_temperature.return_line", Name: "Return Line Temperature (BT3)", Unit: "°C"},
			{ID: FHotWaterTop, Kind: KindNumber, Attribute: "measure_temperature.hot_water_top", Name: "Hot Water Top (BT7)", Unit: "°C"},
			{ID: FHotWaterCharging, Kind: KindNumber, Attribute: "measure_temperature.hot_water_charging", Name: "Hot Water Charging (BT6)", Unit: "°C"},
			{ID: FCondenserTemp, Kind: KindNumber, Attribute: "measure_temperature.condenser", Name: "Condenser Temperature (BT12)", Unit: "°C"},
			{ID: FSuctionGasTemp, Kind: KindNumber, Attribute: "measure_temperature.suction_gas", Name: "Suction Gas Temperature (BT17)", Unit: "°C"},
			{ID: FExhaustAirTemp, Kind: KindNumber, Attribute: "measure_temperature.exhaust_air", Name: "Exhaust Air Temperature (BT20)", Unit: "°C"},
			{ID: FExtractAirTemp, Kind: KindNumber, Attribute: "measure_temperature.extract_air", Name: "Extract Air Temperature", Unit: "°C"},
			{ID: FRoomTemp, Kind: KindNumber, Attribute: "measure_temperature.room", Name: "Room Temperature (BT50)", Unit: "°C"},
			{ID: FSupplyLine, Kind: KindNumber, Attribute: AttrSupplyLine, Name: "Supply Line Temperature", Unit: "°C"},
			{ID: FCalculatedSupplyLine, Kind: KindNumber, Attribute: "measure_temperature.calculated_supply_line", Name: "Calculated Supply Line Temperature", Unit: "°C"},
			{ID: FCurrent1, Kind: KindNumber, Attribute: AttrCurrent1, Name: "Current (BE1)", Unit: "A"},
			{ID: FCurrent2, Kind: KindNumber, Attribute: AttrCurrent2, Name: "Current (BE2)", Unit: "A"},
			{ID: FCurrent3, Kind: KindNumber, Attribute: AttrCurrent3, Name: "Current (BE3)", Unit: "A"},
			{ID: FDegreeMinutes, Kind: KindNumber, Attribute: "measure_degree_minutes", Name: "Degree Minutes", Unit: "DM"},
			{ID: FCompressorFreq, Kind: KindNumber, Attribute: "measure_frequency.compressor", Name: "Current Compressor Frequency", Unit: "Hz"},
			{ID: FTimeHeatAddition, Kind: KindNumber, Attribute: "time.heat_addition", Name: "Time Heat Addition", Unit: "h"},
			{ID: FHeatingCurve, Kind: KindNumber, Attribute: AttrHeatingCurve, Name: "Heating curve"},
			{ID: FOffsetClimateSystem1, Kind: KindNumber, Attribute: AttrHeatingOffset, Name: "Heating offset climate system 1"},
			{ID: FSetPointTemp1, Kind: KindNumber, Attribute: AttrTargetTemperature, Name: "Room sensor set point value heating climate system 1", Unit: "°C"},
			{ID: FSetPointTempF730, Kind: KindNumber, Attribute: AttrTargetTemperature, Name: "Room sensor set point value (F730)", Unit: "°C"},
			{ID: FNightCooling, Kind: KindBoolean, Attribute: "night_cooling", Name: "Night Cooling"},
			{ID: FExhaustAirFanSpeed, Kind: KindNumber, Attribute: "measure_fan_speed.exhaust_air", Name: "Exhaust air fan speed", Unit: "%"},
			{ID: FTemporaryLux, Kind: KindBoolean, Attribute: "state_button.temp_lux", Name: "Temporary Lux"},
			{ID: FIncreasedVentilation, Kind: KindBoolean, Attribute: "state_button.ventilation_boost", Name: "Ventilation Boost"},
			{ID: FOperationMode, Kind: KindWriteOnlyEnum, Attribute: "heater_operation_mode", Name: "Heater Operation Mode"},
			{ID: FHeatingAddition, Kind: KindNumber, Name: "Heating Addition"},
			{ID: FElectricityAddition, Kind: KindNumber, Name: "Electricity Addition"},
			{ID: FCompressorStatus, Kind: KindEnum, Attribute: "status_compressor", Name: "Compressor status"},
			{ID: FElectricAddition, Kind: KindEnum, Attribute: AttrElectricAddition, Name: "Electric Addition Status", Tenths: true},
		},
		Monitored: []ID{
			FOutdoorTemp, FRoomTemp, FCompressorFreq,
			FCurrent3, FCurrent1, FCurrent2,
			FExhaustAirFanSpeed, FExtractAirTemp, FExhaustAirTemp,
			FDegreeMinutes, FSetPointTemp1, FCondenserTemp,
			FTemporaryLux, FIncreasedVentilation, FHeatingMediumSupply,
			FReturnLineTemp, FHotWaterTop, FHotWaterCharging,
			FSuctionGasTemp, FSupplyLine, FCalculatedSupplyLine,
			FTimeHeatAddition, FCompressorStatus, FSetPointTempF730,
			FOperationMode,
		},
		Overrides: []Override{
			{Setting: "param_outdoor_temp", Default: FOutdoorTemp},
			{Setting: "param_heating_supply", Default: FHeatingMediumSupply},
			{Setting: "param_return_line", Default: FReturnLineTemp},
			{Setting: "param_hot_water_top", Default: FHotWaterTop},
			{Setting: "param_hot_water_charging", Default: FHotWaterCharging},
			{Setting: "param_condenser", Default: FCondenserTemp},
			{Setting: "param_suction_gas", Default: FSuctionGasTemp},
			{Setting: "param_exhaust_air", Default: FExhaustAirTemp},
			{Setting: "param_room_temp", Default: FRoomTemp},
			{Setting: "param_supply_line", Default: FSupplyLine},
			{Setting: "param_degree_minutes", Default: FDegreeMinutes},
			{Setting: "param_compressor_freq", Default: FCompressorFreq},
		},
		Writable: map[string]ID{
			"state_button.temp_lux":          FTemporaryLux,
			"state_button.ventilation_boost": FIncreasedVentilation,
			AttrTargetTemperature:            FSetPointTemp1,
			AttrHeatingCurve:                 FHeatingCurve,
			AttrHeatingOffset:                FOffsetClimateSystem1,
		},
		Setpoint: &SetpointRule{
			Primary:   FSetPointTemp1,
			Alternate: FSetPointTempF730,
			Attribute: AttrTargetTemperature,
		},
		Fallbacks: []FallbackRule{
			{Primary: FSupplyLine, Secondary: FHeatingMediumSupply, Min: -50, Max: 100},
		},
		Unsupported:    []string{AttrElectricAddition},
		Currents:       Currents{AttrCurrent1, AttrCurrent2, AttrCurrent3},
		PowerAttribute: AttrPower,
	}
}
