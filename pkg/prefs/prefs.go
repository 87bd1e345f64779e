// Package prefs is the read-only view on the external preference store:
// unit choices plus display metadata for packet fields.
package prefs

import (
	"sort"

	"github.com/spf13/viper"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

// FieldMeta describes how a packet field is presented.
type FieldMeta struct {
	Label   string
	Tooltip string
	Order   int
}

// Store supplies unit preferences and field metadata. Read-only from the
// core's perspective.
type Store interface {
	UnitPrefs() model.UnitPrefs
	FieldMeta(key string) (FieldMeta, bool)
	// OrderedFields returns all known field keys in display order.
	OrderedFields() []string
}

//nolint:lll // table layout
var defaultFieldMeta = map[string]FieldMeta{
	"timestamp":   {Label: "Time", Tooltip: "Sample time", Order: 0},
	"speed":       {Label: "Speed", Tooltip: "Vehicle speed", Order: 1},
	"rpm":         {Label: "RPM", Tooltip: "Motor revolutions per minute", Order: 2},
	"mainVolts":   {Label: "Pack voltage", Tooltip: "Main battery pack voltage", Order: 3},
	"auxVolts":    {Label: "Aux voltage", Tooltip: "Auxiliary system voltage", Order: 4},
	"deltaVolts":  {Label: "Voltage delta", Tooltip: "Pack minus aux voltage", Order: 5},
	"amps":        {Label: "Current", Tooltip: "Pack current draw", Order: 6},
	"ampHours":    {Label: "Amp hours", Tooltip: "Consumed pack capacity", Order: 7},
	"tempMotor":   {Label: "Motor temp", Tooltip: "Motor temperature", Order: 8},
	"tempAmbient": {Label: "Ambient temp", Tooltip: "Ambient temperature", Order: 9},
	"tempDelta":   {Label: "Temp delta", Tooltip: "Motor vs ambient temperature", Order: 10},
	"lat":         {Label: "Latitude", Tooltip: "GPS latitude", Order: 11},
	"lon":         {Label: "Longitude", Tooltip: "GPS longitude", Order: 12},
	"currLap":     {Label: "Lap", Tooltip: "Current lap number", Order: 13},
}

type ViperStore struct {
	v *viper.Viper
}

// NewViperStore reads unit preferences from the given viper instance
// (keys units.speed and units.temp). Where the config file leaves a key
// unset, the given fallback applies, so CLI flag values reach the store.
// Field metadata comes from the builtin table.
func NewViperStore(v *viper.Viper, fallback model.UnitPrefs) *ViperStore {
	v.SetDefault("units.speed", string(fallback.Speed))
	v.SetDefault("units.temp", string(fallback.Temp))
	return &ViperStore{v: v}
}

func (s *ViperStore) UnitPrefs() model.UnitPrefs {
	return model.UnitPrefs{
		Speed: model.SpeedUnit(s.v.GetString("units.speed")),
		Temp:  model.TempUnit(s.v.GetString("units.temp")),
	}
}

func (s *ViperStore) FieldMeta(key string) (FieldMeta, bool) {
	meta, ok := defaultFieldMeta[key]
	return meta, ok
}

func (s *ViperStore) OrderedFields() []string {
	keys := make([]string, 0, len(defaultFieldMeta))
	for k := range defaultFieldMeta {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return defaultFieldMeta[keys[i]].Order < defaultFieldMeta[keys[j]].Order
	})
	return keys
}
