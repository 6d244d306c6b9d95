package telemetry

// Raw field catalog. Every transform reads raw values through these
// descriptors, so the fallback for a missing point is declared once, next
// to its name. Defaults are 0 unless stated.

// Power (W). Power.Factor is dimensionless.
var (
	PowerProductionTotal           = Field{Name: "Power.Production.Total"}
	PowerConsumptionTotal          = Field{Name: "Power.Consumption.Total"}
	PowerExternalTotal             = Field{Name: "Power.External.Total"}
	PowerHouseTotal                = Field{Name: "Power.House.Total"}
	PowerDCString1                 = Field{Name: "Power.DC.String.1"}
	PowerDCString2                 = Field{Name: "Power.DC.String.2"}
	PowerDCTotal                   = Field{Name: "Power.DC.Total"}
	PowerACPhaseA                  = Field{Name: "Power.AC.Phase.A"}
	PowerACPhaseB                  = Field{Name: "Power.AC.Phase.B"}
	PowerACPhaseC                  = Field{Name: "Power.AC.Phase.C"}
	PowerBatteryChargeDischarge    = Field{Name: "Power.Battery.Charge.Discharge"}
	PowerBatteryChargeDischargeSet = Field{Name: "Power.Battery.Charge.Discharge.Set"}
	PowerBatteryChargeMax          = Field{Name: "Power.Battery.Charge.Max"}
	PowerBatteryDischargeMax       = Field{Name: "Power.Battery.Discharge.Max"}
	PowerStorageTotal              = Field{Name: "Power.Storage.Total"}
	PowerGridExport                = Field{Name: "Power.Grid.Export"}
	PowerFactor                    = Field{Name: "Power.Factor"}
	PowerReactive                  = Field{Name: "Power.Reactive"}
	PowerWallboxCharging           = Field{Name: "Power.Wallbox.Connector.1.Charging"}
	PowerWallboxOffered            = Field{Name: "Power.Wallbox.Connector.1.Offered"}
	PowerWallboxRequested          = Field{Name: "Power.Wallbox.Connector.1.Charging.Requested"}
)

// Battery and storage levels. Ah for EnergyBatteryAh, % for the charge levels.
var (
	EnergyBatteryAh                  = Field{Name: "Energy.Battery.Ah"}
	EnergyBatteryChargeLevel         = Field{Name: "Energy.Battery.Charge.Level"}
	EnergyBatteryChargeLevelAbsolute = Field{Name: "Energy.Battery.Charge.Level.Absolute"}
	EnergyBatteryChargeLoad          = Field{Name: "Energy.Battery.Charge.Load"}
	EnergyStorageLevel               = Field{Name: "Energy.Storage.Level"}
	PercentStorageLevel              = Field{Name: "Percent.Storage.Level"}
)

// Daily energy counters (kWh), reset at midnight by the inverter.
var (
	EnergyBatteryChargeDay    = Field{Name: "Energy.Battery.Charge.Day"}
	EnergyBatteryDischargeDay = Field{Name: "Energy.Battery.Discharge.Day"}
	EnergyConsumptionTotalDay = Field{Name: "Energy.Consumption.Total.Day"}
	EnergyProductionTotalDay  = Field{Name: "Energy.Production.Total.Day"}
	EnergyGridExportDay       = Field{Name: "Energy.Grid.Export.Day"}
	EnergyGridImportDay       = Field{Name: "Energy.Grid.Import.Day"}
	EnergyExternalTotalInDay  = Field{Name: "Energy.External.Total.In.Day"}
	EnergyExternalTotalOutDay = Field{Name: "Energy.External.Total.Out.Day"}
	EnergyStorageTotalInDay   = Field{Name: "Energy.Storage.Total.In.Day"}
	EnergyStorageTotalOutDay  = Field{Name: "Energy.Storage.Total.Out.Day"}
)

// Lifetime energy counters.
var (
	EnergyBatteryChargeLifetime    = Field{Name: "Energy.Battery.Charge.Lifetime"}
	EnergyBatteryDischargeLifetime = Field{Name: "Energy.Battery.Discharge.Lifetime"}
	EnergyConsumptionTotalLifetime = Field{Name: "Energy.Consumption.Total.Lifetime"}
	EnergyProductionTotalLifetime  = Field{Name: "Energy.Production.Total.Lifetime"}
	EnergyGridExportLifetime       = Field{Name: "Energy.Grid.Export.Lifetime"}
	EnergyGridImportLifetime       = Field{Name: "Energy.Grid.Import.Lifetime"}
	EnergyWallboxChargedTotal      = Field{Name: "Energy.Wallbox.Connector.1.Charged.Total"}
)

// Voltage (V).
var (
	VoltageBattery       = Field{Name: "Voltage.Battery"}
	VoltagePhaseA        = Field{Name: "Voltage.Phase.A"}
	VoltagePhaseB        = Field{Name: "Voltage.Phase.B"}
	VoltagePhaseC        = Field{Name: "Voltage.Phase.C"}
	VoltageString1       = Field{Name: "Voltage.String.1"}
	VoltageString2       = Field{Name: "Voltage.String.2"}
	VoltageWallboxPhaseA = Field{Name: "Voltage.Wallbox.Connector.1.Phase.A"}
	VoltageWallboxPhaseB = Field{Name: "Voltage.Wallbox.Connector.1.Phase.B"}
	VoltageWallboxPhaseC = Field{Name: "Voltage.Wallbox.Connector.1.Phase.C"}
)

// Current (A).
var (
	CurrentBattery       = Field{Name: "Current.Battery"}
	CurrentString1       = Field{Name: "Current.String.1"}
	CurrentString2       = Field{Name: "Current.String.2"}
	CurrentWallboxPhaseA = Field{Name: "Current.Wallbox.Connector.1.Phase.A"}
	CurrentWallboxPhaseB = Field{Name: "Current.Wallbox.Connector.1.Phase.B"}
	CurrentWallboxPhaseC = Field{Name: "Current.Wallbox.Connector.1.Phase.C"}
)

// Temperature (°C).
var (
	TemperatureBattery       = Field{Name: "Temperature.Battery"}
	TemperatureHousingInside = Field{Name: "Temperature.Housing.Inside"}
)

// Battery management limits (%).
var (
	BatterySOH                  = Field{Name: "Battery.SOH", Default: 100}
	BatteryChargeLevelMax       = Field{Name: "Battery.ChargeLevel.Max", Default: 100}
	BatteryChargeLevelMin       = Field{Name: "Battery.ChargeLevel.Min", Default: 10}
	BatteryChargeLevelMinOnGrid = Field{Name: "Battery.ChargeLevel.MinOnGrid", Default: 10}
)

// Inverter system points.
var (
	FrequencyGrid = Field{Name: "Frequency.Grid", Default: 50}
	CPULoad       = Field{Name: "Cpu.Load"}
	MemoryUsage   = Field{Name: "Memory.Usage"}
)

// Fallbacks used only by the dashboard views.
const (
	defaultBatteryTemperature = 20.0  // °C
	defaultPhaseVoltage       = 230.0 // V, nominal
	defaultBatteryCapacityKWh = 12.4
	balancedStringsPercentage = 100.0
)
