package model

import "fmt"

// Lap is a completed-lap record. Created once, never mutated.
type Lap struct {
	LapNumber  int                `json:"lapNumber"`
	FinishTime int64              `json:"finishTime"` // epoch ms
	Stats      map[string]float64 `json:"stats"`      // lap statistics (time, volts, ...)
}

// Race is a contiguous lap counting session. It has no explicit end;
// it is superseded when a new race is detected.
type Race struct {
	ID        string      `json:"id"`
	StartTime int64       `json:"startTimeMs"`
	Laps      map[int]Lap `json:"laps"`
	LapOrder  []int       `json:"lapOrder"` // detection order of lap numbers
}

// RaceID derives the race key from the start timestamp.
func RaceID(startMs int64) string {
	return fmt.Sprintf("race-%d", startMs)
}

func NewRace(startMs int64) *Race {
	return &Race{
		ID:        RaceID(startMs),
		StartTime: startMs,
		Laps:      make(map[int]Lap),
		LapOrder:  make([]int, 0),
	}
}

// PutLap inserts or overwrites the lap at lap.LapNumber.
func (r *Race) PutLap(lap Lap) {
	if _, ok := r.Laps[lap.LapNumber]; !ok {
		r.LapOrder = append(r.LapOrder, lap.LapNumber)
	}
	r.Laps[lap.LapNumber] = lap
}

func (r *Race) clone() *Race {
	ret := &Race{
		ID:        r.ID,
		StartTime: r.StartTime,
		Laps:      make(map[int]Lap, len(r.Laps)),
		LapOrder:  append([]int{}, r.LapOrder...),
	}
	for k, v := range r.Laps {
		ret.Laps[k] = v
	}
	return ret
}

// Sessions maps race keys to races. Iteration order (Order) is insertion
// order, i.e. chronological by detection.
type Sessions struct {
	Races map[string]*Race `json:"races"`
	Order []string         `json:"order"`
}

func NewSessions() Sessions {
	return Sessions{Races: make(map[string]*Race), Order: make([]string, 0)}
}

func (s Sessions) Len() int { return len(s.Order) }

// Latest returns the most recently detected race (nil if none).
func (s Sessions) Latest() *Race {
	if len(s.Order) == 0 {
		return nil
	}
	return s.Races[s.Order[len(s.Order)-1]]
}

// WithRace returns a copy of s with race added (or replaced). Unchanged
// races are shared between both values; races are never removed.
func (s Sessions) WithRace(race *Race) Sessions {
	ret := Sessions{
		Races: make(map[string]*Race, len(s.Races)+1),
		Order: append([]string{}, s.Order...),
	}
	for k, v := range s.Races {
		ret.Races[k] = v
	}
	if _, ok := ret.Races[race.ID]; !ok {
		ret.Order = append(ret.Order, race.ID)
	}
	ret.Races[race.ID] = race
	return ret
}

// MutableLatest returns a copy of s where the latest race is replaced by a
// private clone that may be modified.
func (s Sessions) MutableLatest() (Sessions, *Race) {
	cur := s.Latest()
	if cur == nil {
		return s, nil
	}
	race := cur.clone()
	return s.WithRace(race), race
}
