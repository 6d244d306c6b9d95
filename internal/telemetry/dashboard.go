package telemetry

import "math"

// EnergyFlowView reports the four headline power flows in kW (2 decimals).
func EnergyFlowView(raw RawFieldMap) Values {
	return Values{
		"pv_power":          kilowatts(raw, PowerProductionTotal, 2),
		"consumption_power": kilowatts(raw, PowerConsumptionTotal, 2),
		"battery_power":     kilowatts(raw, PowerBatteryChargeDischarge, 2),
		"grid_power":        kilowatts(raw, PowerExternalTotal, 2),
	}
}

// BatteryStatusView is the compact battery card. A missing battery
// temperature reads as 20 °C and a missing SoH as 100 %.
func BatteryStatusView(raw RawFieldMap) Values {
	return Values{
		"soc":         round(raw.Float(EnergyBatteryChargeLevel), 1),
		"temperature": round(raw.Float(TemperatureBattery.WithDefault(defaultBatteryTemperature)), 1),
		"voltage":     round(raw.Float(VoltageBattery), 1),
		"current":     round(raw.Float(CurrentBattery), 1),
		"capacity_ah": round(raw.Float(EnergyBatteryAh), 1),
		"health":      round(raw.Float(BatterySOH), 1),
	}
}

// StringsView reports both PV strings and their balance.
func StringsView(raw RawFieldMap) Values {
	p1 := raw.Float(PowerDCString1) / wattsPerKilowatt
	p2 := raw.Float(PowerDCString2) / wattsPerKilowatt

	return Values{
		"string1_power":      round(p1, 2),
		"string2_power":      round(p2, 2),
		"string1_voltage":    round(raw.Float(VoltageString1), 1),
		"string2_voltage":    round(raw.Float(VoltageString2), 1),
		"string1_current":    round(raw.Float(CurrentString1), 1),
		"string2_current":    round(raw.Float(CurrentString2), 1),
		"balance_percentage": round(StringBalance(p1, p2), 1),
	}
}

// SystemView reports inverter health. Missing grid phases read as the
// nominal 230 V and a missing grid frequency as 50 Hz.
func SystemView(raw RawFieldMap) Values {
	gridVoltage := phaseAverage(raw,
		VoltagePhaseA.WithDefault(defaultPhaseVoltage),
		VoltagePhaseB.WithDefault(defaultPhaseVoltage),
		VoltagePhaseC.WithDefault(defaultPhaseVoltage))

	return Values{
		"inverter_temp":  round(raw.Float(TemperatureHousingInside), 1),
		"grid_frequency": round(raw.Float(FrequencyGrid), 2),
		"grid_voltage":   round(gridVoltage, 1),
		"cpu_load":       round(raw.Float(CPULoad), 1),
		"memory_usage":   round(raw.Float(MemoryUsage), 1),
		"system_uptime":  0, // not reported by the inverter
	}
}

// DailyView summarises today's counters. Net grid export never goes
// below zero and the autarky rate stays within [0, 100].
func DailyView(raw RawFieldMap) Values {
	production := raw.Float(EnergyProductionTotalDay)
	consumption := raw.Float(EnergyConsumptionTotalDay)
	export := raw.Float(EnergyGridExportDay)
	imported := raw.Float(EnergyGridImportDay)

	return Values{
		"production_today":  round(production, 2),
		"consumption_today": round(consumption, 2),
		"grid_export_today": round(math.Max(0, export-imported), 2),
		"autarky_rate":      AutarkyRate(production, export, consumption),
	}
}

// CalculatedView derives totals from the strings and battery cards, using
// their rounded values. Without a battery voltage the capacity falls back
// to the nominal 12.4 kWh.
func CalculatedView(raw RawFieldMap) Values {
	pv := StringsView(raw)
	battery := BatteryStatusView(raw)

	capacity := defaultBatteryCapacityKWh
	if battery["voltage"] > 0 {
		capacity = round(battery["capacity_ah"]*battery["voltage"]/wattsPerKilowatt, 1)
	}

	return Values{
		"total_string_power":   round(pv["string1_power"]+pv["string2_power"], 2),
		"string_balance":       pv["balance_percentage"],
		"battery_capacity_kwh": capacity,
	}
}
