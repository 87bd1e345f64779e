// Package race derives races and laps from the packet stream.
//
// Detection is a pure function of (sessions, packet, prevLap) so that the
// same result can be re-derived from a stored packet history, for example
// after loading a historic day, without any live-only side effects.
package race

import (
	"github.com/solarview/telemetry-core-go/pkg/model"
)

// UpdateRaceSessions returns the race sessions after applying one packet.
// The input sessions value is never modified.
//
// A packet contributes a lap only when it carries both a current lap > 0
// and completed-lap statistics. A lap counter reset (prevLap > currLap)
// starts a new race; prior races are retained unmodified.
//
// The caller persists packet.CurrentLap() as the next call's prevLap,
// enabling exact replay from any saved checkpoint.
func UpdateRaceSessions(sessions model.Sessions, packet model.Packet, prevLap int) model.Sessions {
	currLap, ok := packet.CurrentLap()
	if !ok || currLap == 0 {
		return sessions // not yet racing
	}
	if !packet.HasLastLapStats() {
		return sessions // lap counter tick without completed-lap payload
	}

	lap := model.Lap{
		LapNumber:  currLap,
		FinishTime: packet.Timestamp(),
		Stats:      packet.LastLapStats(),
	}

	if sessions.Len() == 0 || prevLap > currLap {
		// lap counter reset: a new race started
		newRace := model.NewRace(packet.Timestamp())
		newRace.PutLap(lap)
		return sessions.WithRace(newRace)
	}

	updated, current := sessions.MutableLatest()
	current.PutLap(lap)
	return updated
}

// Replay runs a packet history through the detector in order, starting
// from empty sessions and lap counter 0. It returns the resulting
// sessions and the final lap counter (the checkpoint for further
// live updates).
func Replay(packets []model.Packet) (model.Sessions, int) {
	sessions := model.NewSessions()
	prevLap := 0
	for _, p := range packets {
		sessions = UpdateRaceSessions(sessions, p, prevLap)
		if lap, ok := p.CurrentLap(); ok {
			prevLap = lap
		}
	}
	return sessions, prevLap
}
