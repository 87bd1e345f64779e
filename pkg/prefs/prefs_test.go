package prefs

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

func TestViperStore_Defaults(t *testing.T) {
	s := NewViperStore(viper.New(), model.DefaultUnitPrefs())
	assert.Equal(t, model.DefaultUnitPrefs(), s.UnitPrefs())
}

func TestViperStore_FallbackReachesUnitPrefs(t *testing.T) {
	// units chosen on the command line arrive here as the fallback
	s := NewViperStore(viper.New(), model.UnitPrefs{
		Speed: model.SpeedKph,
		Temp:  model.TempFahrenheit,
	})

	prefs := s.UnitPrefs()
	assert.Equal(t, model.SpeedKph, prefs.Speed)
	assert.Equal(t, model.TempFahrenheit, prefs.Temp)
}

func TestViperStore_ConfiguredUnitsOverrideFallback(t *testing.T) {
	v := viper.New()
	v.Set("units.speed", "kph")
	v.Set("units.temp", "f")
	s := NewViperStore(v, model.DefaultUnitPrefs())

	prefs := s.UnitPrefs()
	assert.Equal(t, model.SpeedKph, prefs.Speed)
	assert.Equal(t, model.TempFahrenheit, prefs.Temp)
}

func TestViperStore_FieldMeta(t *testing.T) {
	s := NewViperStore(viper.New(), model.DefaultUnitPrefs())

	meta, ok := s.FieldMeta("speed")
	require.True(t, ok)
	assert.Equal(t, "Speed", meta.Label)

	_, ok = s.FieldMeta("unknownField")
	assert.False(t, ok)
}

func TestViperStore_OrderedFields(t *testing.T) {
	s := NewViperStore(viper.New(), model.DefaultUnitPrefs())
	fields := s.OrderedFields()
	require.Len(t, fields, len(defaultFieldMeta))
	assert.Equal(t, "timestamp", fields[0])
	for i := 1; i < len(fields); i++ {
		assert.Less(t,
			defaultFieldMeta[fields[i-1]].Order,
			defaultFieldMeta[fields[i]].Order)
	}
}
