// Package scale converts raw wire units into the user's preferred units
// and computes derived fields. All transforms are pure; the input packet
// is never modified.
package scale

import (
	"math"
	"strings"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

const (
	MsToMph = 2.23694
	MsToKph = 3.6
)

// derived field keys
const (
	KeyDeltaVolts = "deltaVolts"
	KeyTempDelta  = "tempDelta"
)

// source fields for the derived values
const (
	keyMainVolts   = "mainVolts"
	keyAuxVolts    = "auxVolts"
	keyTempMotor   = "tempMotor"
	keyTempAmbient = "tempAmbient"
)

// temperature fields are recognized by key prefix
const tempPrefix = "temp"

// ScalePacket returns a new packet with speed and temperature fields
// converted per prefs plus the derived fields. All other fields pass
// through unchanged. Nil field values propagate as nil.
func ScalePacket(p model.Packet, prefs model.UnitPrefs) model.Packet {
	if p == nil {
		return nil
	}
	ret := make(model.Packet, len(p)+2)
	for k, v := range p {
		ret[k] = convertField(p, k, v, prefs)
	}
	addDerived(ret, prefs)
	return ret
}

func convertField(p model.Packet, key string, v any, prefs model.UnitPrefs) any {
	if v == nil {
		return nil
	}
	switch {
	case key == model.KeySpeed:
		if f, ok := p.Float(key); ok {
			return convertSpeed(f, prefs.Speed)
		}
	case strings.HasPrefix(key, tempPrefix):
		if f, ok := p.Float(key); ok {
			return convertTemp(f, prefs.Temp)
		}
	}
	return v
}

func convertSpeed(ms float64, unit model.SpeedUnit) float64 {
	switch unit {
	case model.SpeedMph:
		return ms * MsToMph
	case model.SpeedKph:
		return ms * MsToKph
	default:
		return ms
	}
}

func convertTemp(celsius float64, unit model.TempUnit) float64 {
	if unit == model.TempFahrenheit {
		return celsius*9/5 + 32
	}
	return celsius
}

// addDerived computes fields from already converted values. The
// temperature differential of two converted readings is itself a valid
// differential in the chosen unit (offsets cancel out).
func addDerived(p model.Packet, _ model.UnitPrefs) {
	if main, ok := p.Float(keyMainVolts); ok {
		if aux, okAux := p.Float(keyAuxVolts); okAux {
			p[KeyDeltaVolts] = main - aux
		}
	}
	if motor, ok := p.Float(keyTempMotor); ok {
		if ambient, okAmb := p.Float(keyTempAmbient); okAmb {
			p[KeyTempDelta] = math.Abs(motor - ambient)
		}
	}
}
