package parameter

// S-series parameter identifiers.
const (
	SOutdoorTemp          ID = 1
	SSupplyLineTemp       ID = 5
	SReturnTemp           ID = 7
	SHotWaterTop          ID = 8
	SHotWaterCharging     ID = 9
	SBrineIn              ID = 10
	SBrineOut             ID = 11
	SCondenserTemp        ID = 12
	SDischargeTemp        ID = 13
	SLiquidLine           ID = 14
	SSuctionGas           ID = 16
	SRoomTemp             ID = 26
	SExternalSupplyLine   ID = 39
	SCurrent1             ID = 46
	SCurrent2             ID = 48
	SCurrent3             ID = 50
	SAverageOutdoorTemp   ID = 37
	SCalculatedSupplyTemp ID = 1017
	SOperationPriority    ID = 1028
	SCompressorFreq       ID = 1046
	SCompressorStarts     ID = 1083
	SCompressorRuntime    ID = 1087
	SCompressorStatus     ID = 1100
	SHeatMediumPumpSpeed  ID = 1102
	SBrinePumpSpeed       ID = 1104
	SInstantaneousPower   ID = 2166
	SDegreeMinutes        ID = 40941
	SHeatingCurve         ID = 47007
	SHeatingOffset        ID = 47011
	SHotWaterComfortMode  ID = 47041
	STargetRoomTemp       ID = 47398
	STempLux              ID = 48132
	SElectricAddition     ID = 49993
	SHotWaterBoost        ID = 50004
	SVentilationBoost     ID = 50005
)

// SSeries returns the S-series catalog.
func SSeries() *Catalog {
	return &Catalog{
		Family: FamilyS,
		Descriptors: []Descriptor{
			{ID: SOutdoorTemp, Kind: KindNumber, Attribute: "measure_temperature.outdoor", Name: "Current Outdoor Temperature (BT1)", Unit: "°C"},
			{ID: SAverageOutdoorTemp, Kind: KindNumber, Attribute: "measure_temperature.average_outdoor", Name: "Average Outdoor Temperature", Unit: "°C"},
			{ID: SSupplyLineTemp, Kind: KindNumber, Attribute: AttrSupplyLine, Name: "Supply line (BT2)", Unit: "°C"},
			{ID: SExternalSupplyLine, Kind: KindNumber, Attribute: "measure_temperature.external_supply_line", Name: "External supply line (BT25)", Unit: "°C"},
			{ID: SReturnTemp, Kind: KindNumber, Attribute: "measure_temperature.return_line", Name: "Return Line (BT3)", Unit: "°C"},
			{ID: SHotWaterTop, Kind: KindNumber, Attribute: "measure_temperature.hot_water_top", Name: "Hot Water Top (BT7)", Unit: "°C"},
			{ID: SHotWaterCharging, Kind: KindNumber, Attribute: "measure_temperature.hot_water_charging", Name: "Hot Water Charging (BT6)", Unit: "°C"},
			{ID: SBrineIn, Kind: KindNumber, Attribute: "measure_temperature.brine_in", Name: "Brine In (BT10)", Unit: "°C"},
			{ID: SBrineOut, Kind: KindNumber, Attribute: "measure_temperature.brine_out", Name: "Brine Out (BT11)", Unit: "°C"},
			{ID: SCondenserTemp, Kind: KindNumber, Attribute: "measure_temperature.condenser", Name: "Condenser (BT12)", Unit: "°C"},
			{ID: SDischargeTemp, Kind: KindNumber, Attribute: "measure_temperature.discharge", Name: "Discharge (BT14)", Unit: "°C"},
			{ID: SLiquidLine, Kind: KindNumber, Attribute: "measure_temperature.liquid_line", Name: "Liquid Line (BT15)", Unit: "°C"},
			{ID: SSuctionGas, Kind: KindNumber, Attribute: "measure_temperature.suction_gas", Name: "Suction Gas (BT17)", Unit: "°C"},
			{ID: SRoomTemp, Kind: KindNumber, Attribute: "measure_temperature.room", Name: "Room Temperature (BT50)", Unit: "°C"},
			{ID: SCalculatedSupplyTemp, Kind: KindNumber, Attribute: "measure_temperature.calculated_supply_line", Name: "Calculated supply temperature", Unit: "°C"},
			{ID: SCurrent1, Kind: KindNumber, Attribute: AttrCurrent1, Name: "Current (BE3)", Unit: "A"},
			{ID: SCurrent2, Kind: KindNumber, Attribute: AttrCurrent2, Name: "Current (BE2)", Unit: "A"},
			{ID: SCurrent3, Kind: KindNumber, Attribute: AttrCurrent3, Name: "Current (BE1)", Unit: "A"},
			{ID: SDegreeMinutes, Kind: KindNumber, Attribute: "measure_degree_minutes", Name: "Degree Minutes", Unit: "DM"},
			{ID: SHeatMediumPumpSpeed, Kind: KindNumber, Attribute: "measure_pump_speed.heating_medium", Name: "Heating Medium Pump Speed (GP1)", Unit: "%"},
			{ID: SBrinePumpSpeed, Kind: KindNumber, Attribute: "measure_pump_speed.brine", Name: "Brine Pump Speed (GP2)", Unit: "%"},
			{ID: SCompressorFreq, Kind: KindNumber, Attribute: "measure_frequency.compressor", Name: "Current Compressor Frequency", Unit: "Hz"},
			{ID: SCompressorStarts, Kind: KindNumber, Attribute: "measure_compressor_starts", Name: "Compressor Starts"},
			{ID: SCompressorRuntime, Kind: KindNumber, Attribute: "time.compressor_runtime", Name: "Total Compressor Runtime", Unit: "h"},
			{ID: SCompressorStatus, Kind: KindEnum, Attribute: "status_compressor", Name: "Compressor Operating Mode"},
			{ID: SInstantaneousPower, Kind: KindNumber, Attribute: AttrPower, Name: "Instantaneous Used Power", Unit: "W", Scale: 1000},
			{ID: SOperationPriority, Kind: KindEnum, Attribute: "status_operation_priority", Name: "Operation Priority"},
			{ID: SElectricAddition, Kind: KindEnum, Attribute: AttrElectricAddition, Name: "Internal Electric Addition Heat Status", Tenths: true},
			{ID: SHotWaterBoost, Kind: KindBoolean, Attribute: "state_button.hot_water_boost", Name: "More Hot Water"},
			{ID: SVentilationBoost, Kind: KindBoolean, Attribute: "state_button.ventilation_boost", Name: "Increased Ventilation"},
			{ID: STargetRoomTemp, Kind: KindNumber, Attribute: AttrTargetTemperature, Name: "Room Temperature Setpoint", Unit: "°C"},
			{ID: SHeatingCurve, Kind: KindNumber, Attribute: AttrHeatingCurve, Name: "Heat curve S1"},
			{ID: SHeatingOffset, Kind: KindNumber, Attribute: AttrHeatingOffset, Name: "Heat offset S1"},
			{ID: SHotWaterComfortMode, Kind: KindWriteOnlyEnum, Attribute: "hot_water_comfort_mode", Name: "Hot water comfort mode"},
			{ID: STempLux, Kind: KindWriteOnlyEnum, Attribute: "temporary_lux", Name: "Temporary luxury"},
		},
		Monitored: []ID{
			SOutdoorTemp, SAverageOutdoorTemp, SSupplyLineTemp, SExternalSupplyLine,
			SReturnTemp, SHotWaterTop, SHotWaterCharging,
			SBrineIn, SBrineOut, SCondenserTemp, SDischargeTemp, SLiquidLine, SSuctionGas,
			SRoomTemp, SCalculatedSupplyTemp,
			SCurrent1, SCurrent2, SCurrent3,
			SDegreeMinutes, SHeatMediumPumpSpeed, SBrinePumpSpeed,
			SCompressorFreq, SCompressorStarts, SCompressorRuntime, SCompressorStatus,
			SInstantaneousPower, SOperationPriority, SElectricAddition,
			SHotWaterBoost, STargetRoomTemp,
			SHotWaterComfortMode, STempLux,
		},
		Overrides: []Override{
			{Setting: "param_outdoor_temp", Default: SOutdoorTemp},
			{Setting: "param_supply_line", Default: SSupplyLineTemp},
			{Setting: "param_return_line", Default: SReturnTemp},
			{Setting: "param_hot_water_top", Default: SHotWaterTop},
			{Setting: "param_hot_water_charging", Default: SHotWaterCharging},
			{Setting: "param_brine_in", Default: SBrineIn},
			{Setting: "param_brine_out", Default: SBrineOut},
			{Setting: "param_condenser", Default: SCondenserTemp},
			{Setting: "param_suction_gas", Default: SSuctionGas},
			{Setting: "param_room_temp", Default: SRoomTemp},
			{Setting: "param_degree_minutes", Default: SDegreeMinutes},
			{Setting: "param_compressor_freq", Default: SCompressorFreq},
		},
		Writable: map[string]ID{
			"state_button.hot_water_boost":   SHotWaterBoost,
			"state_button.ventilation_boost": SVentilationBoost,
			AttrTargetTemperature:            STargetRoomTemp,
			AttrHeatingCurve:                 SHeatingCurve,
			AttrHeatingOffset:                SHeatingOffset,
		},
		Fallbacks: []FallbackRule{
			{Primary: SSupplyLineTemp, Secondary: SExternalSupplyLine, Min: -50, Max: 100},
		},
		Currents:       Currents{AttrCurrent1, AttrCurrent2, AttrCurrent3},
		PowerAttribute: AttrPower,
		NativePower:    true,
	}
}
