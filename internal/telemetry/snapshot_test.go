package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

func TestBuild_AllCategories(t *testing.T) {
	raw := RawFieldMap{"Power.Production.Total": int64(1500)}

	snap, err := Build(raw, testTime)
	require.NoError(t, err)

	assert.True(t, snap.Online)
	assert.Equal(t, testTime, snap.Timestamp)
	assert.Equal(t, 1, snap.FieldCount())
	assert.Len(t, snap.Categories, len(ComprehensiveCategories)+len(DashboardCategories))

	power, ok := snap.Category(CategoryPower)
	require.True(t, ok)
	assert.Equal(t, 1.5, power["production_total"])

	flow, ok := snap.Category(CategoryEnergyFlow)
	require.True(t, ok)
	assert.Equal(t, 1.5, flow["pv_power"])
}

func TestBuild_SelectedCategories(t *testing.T) {
	snap, err := Build(RawFieldMap{"A": int64(1)}, testTime, CategoryPower, CategoryBattery)
	require.NoError(t, err)

	assert.Len(t, snap.Categories, 2)
	_, ok := snap.Category(CategoryEnergy)
	assert.False(t, ok)
}

func TestBuild_UnknownCategory(t *testing.T) {
	_, err := Build(RawFieldMap{}, testTime, Category("wind"))
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestBuild_EmptyRawIsOffline(t *testing.T) {
	snap, err := Build(nil, testTime)
	require.NoError(t, err)

	assert.False(t, snap.Online)
	assert.Equal(t, 0, snap.FieldCount())
	assert.NotNil(t, snap.Raw)
}

func TestSnapshot_NilSafe(t *testing.T) {
	var snap *Snapshot
	assert.Equal(t, 0, snap.FieldCount())
	_, ok := snap.Category(CategoryPower)
	assert.False(t, ok)
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	raw := RawFieldMap{
		"Power.Production.Total": int64(1500),
		"Inverter.State":         "running",
	}
	snap, err := Build(raw, testTime, ComprehensiveCategories...)
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "2026-03-14T12:30:00Z", doc["timestamp"])
	for _, c := range ComprehensiveCategories {
		assert.Contains(t, doc, string(c))
	}
	assert.NotContains(t, doc, string(CategoryEnergyFlow))

	meta, ok := doc["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), meta["total_fields_captured"])
	assert.Equal(t, true, meta["system_online"])

	rawDoc, ok := doc["raw_data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1500), rawDoc["Power.Production.Total"])
	assert.Equal(t, "running", rawDoc["Inverter.State"])

	power, ok := doc["power"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.5, power["production_total"])
}

func TestSnapshot_MarshalJSON_HugeValues(t *testing.T) {
	raw := ParseCSV(",result,table,_start,_stop,_time,_measurement,device,Energy.Battery.Ah,Voltage.Battery,Current.Battery\n" +
		",_result,0,x,x,x,x,x,1.0e308,1.0e308,1.0e308\n")

	snap, err := Build(raw, testTime)
	require.NoError(t, err)

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	battery, ok := doc["battery"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.0, battery["power_kw"])
	assert.Equal(t, 1.0e308, battery["capacity_ah"])
}
