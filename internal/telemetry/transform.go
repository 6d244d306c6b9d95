package telemetry

import "math"

// Values is one category view: stable output key to a unit-normalised number.
type Values map[string]float64

// wattsPerKilowatt converts raw W to kW.
const wattsPerKilowatt = 1000.0

// round rounds v to the given number of decimal places, half away from zero.
// Values too large to scale are returned unrounded, and non-finite values
// read as 0 so a snapshot always encodes as JSON.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if math.IsNaN(r) || math.IsInf(r, 0) {
		r = finite(v)
	}
	if r == 0 {
		return 0 // normalise -0
	}
	return r
}

// finite returns v, or 0 when v is NaN or infinite.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// kilowatts reads a W field and returns kW rounded to places.
func kilowatts(raw RawFieldMap, f Field, places int) float64 {
	return round(raw.Float(f)/wattsPerKilowatt, places)
}

// PowerView converts instantaneous power readings to kW (3 decimals).
// The power factor is dimensionless and only rounded.
func PowerView(raw RawFieldMap) Values {
	kw := func(f Field) float64 { return kilowatts(raw, f, 3) }
	return Values{
		"production_total":             kw(PowerProductionTotal),
		"consumption_total":            kw(PowerConsumptionTotal),
		"external_total":               kw(PowerExternalTotal),
		"house_total":                  kw(PowerHouseTotal),
		"dc_string1":                   kw(PowerDCString1),
		"dc_string2":                   kw(PowerDCString2),
		"dc_total":                     kw(PowerDCTotal),
		"ac_phase_a":                   kw(PowerACPhaseA),
		"ac_phase_b":                   kw(PowerACPhaseB),
		"ac_phase_c":                   kw(PowerACPhaseC),
		"battery_charge_discharge":     kw(PowerBatteryChargeDischarge),
		"battery_charge_discharge_set": kw(PowerBatteryChargeDischargeSet),
		"battery_charge_max":           kw(PowerBatteryChargeMax),
		"battery_discharge_max":        kw(PowerBatteryDischargeMax),
		"storage_total":                kw(PowerStorageTotal),
		"grid_export":                  kw(PowerGridExport),
		"power_factor":                 round(raw.Float(PowerFactor), 3),
		"reactive_power":               kw(PowerReactive),
		"wallbox_charging":             kw(PowerWallboxCharging),
		"wallbox_offered":              kw(PowerWallboxOffered),
		"wallbox_requested":            kw(PowerWallboxRequested),
	}
}

// EnergyView reports energy counters without unit scaling. Daily counters
// and Ah keep 2 decimals, lifetime counters and percentages 1, and the
// wallbox total is whole kWh. Charge load and storage level pass through.
func EnergyView(raw RawFieldMap) Values {
	daily := func(f Field) float64 { return round(raw.Float(f), 2) }
	lifetime := func(f Field) float64 { return round(raw.Float(f), 1) }
	return Values{
		"battery_ah":                    daily(EnergyBatteryAh),
		"battery_charge_level":          lifetime(EnergyBatteryChargeLevel),
		"battery_charge_level_absolute": lifetime(EnergyBatteryChargeLevelAbsolute),
		"battery_charge_load":           raw.Float(EnergyBatteryChargeLoad),
		"storage_level":                 raw.Float(EnergyStorageLevel),
		"percent_storage_level":         lifetime(PercentStorageLevel),
		"battery_charge_day":            daily(EnergyBatteryChargeDay),
		"battery_discharge_day":         daily(EnergyBatteryDischargeDay),
		"consumption_total_day":         daily(EnergyConsumptionTotalDay),
		"production_total_day":          daily(EnergyProductionTotalDay),
		"grid_export_day":               daily(EnergyGridExportDay),
		"grid_import_day":               daily(EnergyGridImportDay),
		"external_total_in_day":         daily(EnergyExternalTotalInDay),
		"external_total_out_day":        daily(EnergyExternalTotalOutDay),
		"storage_total_in_day":          daily(EnergyStorageTotalInDay),
		"storage_total_out_day":         daily(EnergyStorageTotalOutDay),
		"battery_charge_lifetime":       lifetime(EnergyBatteryChargeLifetime),
		"battery_discharge_lifetime":    lifetime(EnergyBatteryDischargeLifetime),
		"consumption_total_lifetime":    lifetime(EnergyConsumptionTotalLifetime),
		"production_total_lifetime":     lifetime(EnergyProductionTotalLifetime),
		"grid_export_lifetime":          lifetime(EnergyGridExportLifetime),
		"grid_import_lifetime":          lifetime(EnergyGridImportLifetime),
		"wallbox_charged_total":         round(raw.Float(EnergyWallboxChargedTotal), 0),
	}
}

// VoltageView reports voltages (1 decimal) plus the mean of the three grid phases.
func VoltageView(raw RawFieldMap) Values {
	v := func(f Field) float64 { return round(raw.Float(f), 1) }
	return Values{
		"battery":         v(VoltageBattery),
		"phase_a":         v(VoltagePhaseA),
		"phase_b":         v(VoltagePhaseB),
		"phase_c":         v(VoltagePhaseC),
		"phase_average":   round(phaseAverage(raw, VoltagePhaseA, VoltagePhaseB, VoltagePhaseC), 1),
		"string1":         v(VoltageString1),
		"string2":         v(VoltageString2),
		"wallbox_phase_a": v(VoltageWallboxPhaseA),
		"wallbox_phase_b": v(VoltageWallboxPhaseB),
		"wallbox_phase_c": v(VoltageWallboxPhaseC),
	}
}

func phaseAverage(raw RawFieldMap, a, b, c Field) float64 {
	return (raw.Float(a) + raw.Float(b) + raw.Float(c)) / 3
}

// CurrentView reports currents with 2 decimals.
func CurrentView(raw RawFieldMap) Values {
	a := func(f Field) float64 { return round(raw.Float(f), 2) }
	return Values{
		"battery":         a(CurrentBattery),
		"string1":         a(CurrentString1),
		"string2":         a(CurrentString2),
		"wallbox_phase_a": a(CurrentWallboxPhaseA),
		"wallbox_phase_b": a(CurrentWallboxPhaseB),
		"wallbox_phase_c": a(CurrentWallboxPhaseC),
	}
}

// TemperatureView reports temperatures with 1 decimal.
func TemperatureView(raw RawFieldMap) Values {
	return Values{
		"battery":        round(raw.Float(TemperatureBattery), 1),
		"housing_inside": round(raw.Float(TemperatureHousingInside), 1),
	}
}

// BatteryView combines the battery points into state and derived energy metrics.
//
// Derived values fall back to 0 unless every operand is non-zero:
//   - power_kw      = V × A / 1000
//   - capacity_kwh  = Ah × V / 1000
//   - available_kwh = SoC% × Ah × V / 100000
func BatteryView(raw RawFieldMap) Values {
	soc := raw.Float(EnergyBatteryChargeLevel)
	voltage := raw.Float(VoltageBattery)
	current := raw.Float(CurrentBattery)
	capacityAh := raw.Float(EnergyBatteryAh)

	return Values{
		"soc_percent":              round(soc, 1),
		"soh_percent":              round(raw.Float(BatterySOH), 1),
		"charge_level_max":         raw.Float(BatteryChargeLevelMax),
		"charge_level_min":         raw.Float(BatteryChargeLevelMin),
		"charge_level_min_on_grid": raw.Float(BatteryChargeLevelMinOnGrid),
		"voltage":                  round(voltage, 1),
		"current":                  round(current, 2),
		"capacity_ah":              round(capacityAh, 1),
		"power_kw":                 round(BatteryPowerKW(voltage, current), 3),
		"capacity_kwh":             round(BatteryCapacityKWh(capacityAh, voltage), 1),
		"available_kwh":            round(BatteryAvailableKWh(soc, capacityAh, voltage), 1),
		"temperature":              round(raw.Float(TemperatureBattery), 1),
		"charged_today_kwh":        round(raw.Float(EnergyBatteryChargeDay), 2),
		"discharged_today_kwh":     round(raw.Float(EnergyBatteryDischargeDay), 2),
		"charged_lifetime_mwh":     round(raw.Float(EnergyBatteryChargeLifetime), 1),
		"discharged_lifetime_mwh":  round(raw.Float(EnergyBatteryDischargeLifetime), 1),
	}
}

// BatteryPowerKW returns V × A in kW, or 0 if either operand is zero or
// the product overflows.
func BatteryPowerKW(voltage, current float64) float64 {
	if voltage == 0 || current == 0 {
		return 0
	}
	return finite(voltage * current / wattsPerKilowatt)
}

// BatteryCapacityKWh returns Ah × V in kWh, or 0 if either operand is zero.
func BatteryCapacityKWh(capacityAh, voltage float64) float64 {
	if capacityAh == 0 || voltage == 0 {
		return 0
	}
	return finite(capacityAh * voltage / wattsPerKilowatt)
}

// BatteryAvailableKWh returns the stored energy at the given state of
// charge, or 0 unless all three operands are non-zero.
func BatteryAvailableKWh(socPercent, capacityAh, voltage float64) float64 {
	if socPercent == 0 || capacityAh == 0 || voltage == 0 {
		return 0
	}
	return finite(socPercent * capacityAh * voltage / 100000)
}

// StringBalance returns how evenly two PV strings produce, as the smaller
// power over the larger in percent. When either string is not producing
// the balance is reported as 100.
func StringBalance(p1, p2 float64) float64 {
	if p1 <= 0 || p2 <= 0 {
		return balancedStringsPercentage
	}
	return math.Min(p1, p2) / math.Max(p1, p2) * 100
}

// AutarkyRate returns the share of the day's consumption covered by own
// production, in percent within [0, 100]. Self-consumption is production
// minus export; without consumption the rate is 0.
func AutarkyRate(productionDay, exportDay, consumptionDay float64) float64 {
	if consumptionDay <= 0 {
		return 0
	}
	selfConsumption := productionDay - exportDay
	rate := math.Min(100, round(selfConsumption/consumptionDay*100, 1))
	return math.Max(0, rate)
}
