// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// RawRecord is one JSON object as received from the backend. Numbers decode
// as float64 and strings are kept untouched; coercion happens in reconcile.
type RawRecord map[string]any

// Backend field names.
const (
	FieldID           = "id"
	FieldTimestamp    = "timestamp"
	FieldTemperature  = "temperature_c"
	FieldEnergy       = "energy_consumed_kwh"
	FieldChargingRate = "charging_rate_kw"
	FieldDuration     = "charging_duration_hours"
	FieldCost         = "charging_cost_eur"
	FieldBattery      = "battery_level_percent"
	FieldDeviceID     = "device_id"
	FieldCluster      = "cluster"
)

// Measure is a plotted value. NaN marks a value that failed coercion and is
// encoded as JSON null.
type Measure float64

// Valid reports whether m is a finite number.
func (m Measure) Valid() bool {
	f := float64(m)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON implements json.Marshaler.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(m), 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (m *Measure) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = Measure(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Measure(f)
	return nil
}

// NaN returns an invalid Measure.
func NaN() Measure { return Measure(math.NaN()) }

// TelemetryRecord is one normalized charging session observation.
type TelemetryRecord struct {
	ID             any       `json:"id"`
	Key            string    `json:"key"`
	Timestamp      string    `json:"timestamp"`
	At             time.Time `json:"at"`
	TimestampValid bool      `json:"timestamp_valid"`

	Temperature Measure `json:"temperature_c"`
	Energy      Measure `json:"energy_consumed_kwh"`

	ChargingRate float64 `json:"charging_rate_kw"`
	Duration     float64 `json:"charging_duration_hours"`
	Cost         float64 `json:"charging_cost_eur"`
	BatteryLevel float64 `json:"battery_level_percent"`
}

// featureView adds the plotting aliases used by the dashboard.
type featureView struct {
	Temperatura Measure `json:"temperatura"`
	Energia     Measure `json:"energia"`
}

// MarshalJSON emits the record plus the temperatura/energia plotting aliases.
func (r TelemetryRecord) MarshalJSON() ([]byte, error) {
	type plain TelemetryRecord
	return json.Marshal(struct {
		plain
		featureView
	}{plain(r), featureView{Temperatura: r.Temperature, Energia: r.Energy}})
}

// UnmarshalJSON implements json.Unmarshaler so mirrored snapshots round-trip.
func (r *TelemetryRecord) UnmarshalJSON(b []byte) error {
	type plain TelemetryRecord
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = TelemetryRecord(p)
	return nil
}

// ClusterAssignment maps a device/session identifier to a cluster label.
type ClusterAssignment struct {
	DeviceID any    `json:"device_id"`
	Key      string `json:"key"`
	Cluster  int    `json:"cluster"`
}

// ClusterIndex maps a normalized identifier to its cluster label.
type ClusterIndex map[string]int

// MergedRecord is a TelemetryRecord that resolved to a cluster label. Both
// plotting features are always valid.
type MergedRecord struct {
	TelemetryRecord
	Cluster int    `json:"cluster"`
	Color   string `json:"color"`
}

// MarshalJSON keeps the embedded record's aliases next to cluster and color.
func (m MergedRecord) MarshalJSON() ([]byte, error) {
	type plain TelemetryRecord
	return json.Marshal(struct {
		plain
		featureView
		Cluster int    `json:"cluster"`
		Color   string `json:"color"`
	}{
		plain:       plain(m.TelemetryRecord),
		featureView: featureView{Temperatura: m.Temperature, Energia: m.Energy},
		Cluster:     m.Cluster,
		Color:       m.Color,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *MergedRecord) UnmarshalJSON(b []byte) error {
	type plain TelemetryRecord
	var v struct {
		plain
		Cluster int    `json:"cluster"`
		Color   string `json:"color"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.TelemetryRecord = TelemetryRecord(v.plain)
	m.Cluster = v.Cluster
	m.Color = v.Color
	return nil
}

// ClusterStats aggregates the merged records of one cluster label.
// Averages are rounded for display: 1 decimal for temperature, 2 for energy.
type ClusterStats struct {
	Cluster   int     `json:"cluster"`
	Count     int     `json:"count"`
	AvgTemp   float64 `json:"avgTemp"`
	AvgEnergy float64 `json:"avgEnergy"`
}
