package model

type SpeedUnit string

const (
	SpeedMs  SpeedUnit = "ms" // wire unit, meters/second
	SpeedMph SpeedUnit = "mph"
	SpeedKph SpeedUnit = "kph"
)

type TempUnit string

const (
	TempCelsius    TempUnit = "c" // wire unit
	TempFahrenheit TempUnit = "f"
)

// UnitPrefs holds the user's unit choices. Supplied by the preference
// store; read-only for this core.
type UnitPrefs struct {
	Speed SpeedUnit `json:"speed"`
	Temp  TempUnit  `json:"temp"`
}

func DefaultUnitPrefs() UnitPrefs {
	return UnitPrefs{Speed: SpeedMs, Temp: TempCelsius}
}
