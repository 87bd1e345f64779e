package model

// well known packet field keys
const (
	KeyTimestamp  = "timestamp"
	KeyCurrentLap = "currLap"
	KeyLat        = "lat"
	KeyLon        = "lon"
	KeySpeed      = "speed"
)

// LastLapPrefix marks fields carrying statistics of a just completed lap.
// Such fields are only present on the packet reporting that lap.
const LastLapPrefix = "LL_"

// Packet is one decoded telemetry sample. Values are numbers, strings or nil.
// Packets are immutable once received; use Clone before modifying.
type Packet map[string]any

// Timestamp returns the sample time in epoch milliseconds (0 if absent).
func (p Packet) Timestamp() int64 {
	v, ok := p.Int64(KeyTimestamp)
	if !ok {
		return 0
	}
	return v
}

// CurrentLap returns the current lap ordinal. ok is false if the field
// is absent. A value of 0 means the car is not yet racing.
func (p Packet) CurrentLap() (lap int, ok bool) {
	v, ok := p.Int64(KeyCurrentLap)
	return int(v), ok
}

// HasLastLapStats reports whether this packet carries completed-lap statistics.
func (p Packet) HasLastLapStats() bool {
	for k := range p {
		if len(k) > len(LastLapPrefix) && k[:len(LastLapPrefix)] == LastLapPrefix {
			return true
		}
	}
	return false
}

// LastLapStats collects all numeric completed-lap fields (prefix stripped).
func (p Packet) LastLapStats() map[string]float64 {
	ret := make(map[string]float64)
	for k, v := range p {
		if len(k) <= len(LastLapPrefix) || k[:len(LastLapPrefix)] != LastLapPrefix {
			continue
		}
		if f, ok := toFloat(v); ok {
			ret[k[len(LastLapPrefix):]] = f
		}
	}
	return ret
}

// Float returns the field as float64. Handles the numeric types the
// codec may produce (int64/uint64/float64 plus plain Go ints in tests).
func (p Packet) Float(key string) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func (p Packet) Int64(key string) (int64, bool) {
	f, ok := p.Float(key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func (p Packet) Clone() Packet {
	ret := make(Packet, len(p))
	for k, v := range p {
		ret[k] = v
	}
	return ret
}

//nolint:cyclop // plain type switch
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
