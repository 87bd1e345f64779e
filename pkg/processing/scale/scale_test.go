//nolint:funlen // ok for tests
package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

func TestScalePacket_SpeedConversion(t *testing.T) {
	tests := []struct {
		name string
		unit model.SpeedUnit
		want float64
	}{
		{"wire unit untouched", model.SpeedMs, 10},
		{"mph", model.SpeedMph, 22.3694},
		{"kph", model.SpeedKph, 36},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ScalePacket(
				model.Packet{"speed": 10.0},
				model.UnitPrefs{Speed: tt.unit, Temp: model.TempCelsius})
			got, ok := out.Float("speed")
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestScalePacket_TempConversion(t *testing.T) {
	out := ScalePacket(
		model.Packet{"temp1": 0.0, "tempMotor": 100.0},
		model.UnitPrefs{Speed: model.SpeedMs, Temp: model.TempFahrenheit})

	got, ok := out.Float("temp1")
	require.True(t, ok)
	assert.InDelta(t, 32.0, got, 1e-9)
	got, ok = out.Float("tempMotor")
	require.True(t, ok)
	assert.InDelta(t, 212.0, got, 1e-9)
}

func TestScalePacket_SpecExample(t *testing.T) {
	out := ScalePacket(
		model.Packet{"speed": 10.0, "temp1": 0.0},
		model.UnitPrefs{Speed: model.SpeedKph, Temp: model.TempFahrenheit})

	speed, _ := out.Float("speed")
	temp, _ := out.Float("temp1")
	assert.InDelta(t, 36.0, speed, 1e-9)
	assert.InDelta(t, 32.0, temp, 1e-9)
}

func TestScalePacket_DerivedFields(t *testing.T) {
	out := ScalePacket(
		model.Packet{"mainVolts": 96.0, "auxVolts": 12.0,
			"tempMotor": 80.0, "tempAmbient": 25.0},
		model.DefaultUnitPrefs())

	delta, ok := out.Float(KeyDeltaVolts)
	require.True(t, ok)
	assert.InDelta(t, 84.0, delta, 1e-9)
	tempDelta, ok := out.Float(KeyTempDelta)
	require.True(t, ok)
	assert.InDelta(t, 55.0, tempDelta, 1e-9)
}

func TestScalePacket_DerivedSkippedWithoutInputs(t *testing.T) {
	out := ScalePacket(model.Packet{"mainVolts": 96.0}, model.DefaultUnitPrefs())
	_, ok := out[KeyDeltaVolts]
	assert.False(t, ok)
	_, ok = out[KeyTempDelta]
	assert.False(t, ok)
}

func TestScalePacket_PassThroughAndNil(t *testing.T) {
	in := model.Packet{
		"speed": nil,
		"temp1": nil,
		"name":  "sv1",
		"rpm":   1200.0,
	}
	out := ScalePacket(in, model.UnitPrefs{Speed: model.SpeedKph, Temp: model.TempFahrenheit})

	assert.Nil(t, out["speed"])
	assert.Nil(t, out["temp1"])
	assert.Equal(t, "sv1", out["name"])
	assert.Equal(t, 1200.0, out["rpm"])
}

func TestScalePacket_InputUntouched(t *testing.T) {
	in := model.Packet{"speed": 10.0, "temp1": 0.0}
	_ = ScalePacket(in, model.UnitPrefs{Speed: model.SpeedKph, Temp: model.TempFahrenheit})

	assert.Equal(t, 10.0, in["speed"])
	assert.Equal(t, 0.0, in["temp1"])
}

func TestScalePacket_NilPacket(t *testing.T) {
	assert.Nil(t, ScalePacket(nil, model.DefaultUnitPrefs()))
}
