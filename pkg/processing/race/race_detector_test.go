//nolint:funlen,lll // ok for tests
package race

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

func lapPacket(ts int64, currLap int, lapTime float64) model.Packet {
	return model.Packet{
		model.KeyTimestamp:  ts,
		model.KeyCurrentLap: currLap,
		"LL_Time":           lapTime,
	}
}

func tickPacket(ts int64, currLap int) model.Packet {
	return model.Packet{
		model.KeyTimestamp:  ts,
		model.KeyCurrentLap: currLap,
	}
}

func TestUpdateRaceSessions_FirstLap(t *testing.T) {
	sessions := UpdateRaceSessions(model.NewSessions(), lapPacket(1000, 1, 60.5), 0)

	require.Equal(t, 1, sessions.Len())
	race := sessions.Latest()
	require.NotNil(t, race)
	assert.Equal(t, model.RaceID(1000), race.ID)
	assert.Equal(t, int64(1000), race.StartTime)
	require.Contains(t, race.Laps, 1)
	assert.Equal(t, 1, race.Laps[1].LapNumber)
	assert.Equal(t, int64(1000), race.Laps[1].FinishTime)
	assert.InDelta(t, 60.5, race.Laps[1].Stats["Time"], 1e-9)
}

func TestUpdateRaceSessions_NotRacing(t *testing.T) {
	sessions := model.NewSessions()

	// currLap 0: not yet racing
	result := UpdateRaceSessions(sessions, model.Packet{
		model.KeyTimestamp:  int64(1000),
		model.KeyCurrentLap: 0,
		"LL_Time":           60.5,
	}, 0)
	assert.Equal(t, 0, result.Len())

	// currLap absent
	result = UpdateRaceSessions(sessions, model.Packet{
		model.KeyTimestamp: int64(1000),
	}, 3)
	assert.Equal(t, 0, result.Len())
}

func TestUpdateRaceSessions_TickWithoutStats(t *testing.T) {
	sessions := UpdateRaceSessions(model.NewSessions(), lapPacket(1000, 1, 60.5), 0)

	// lap counter advanced but no completed-lap payload yet
	result := UpdateRaceSessions(sessions, tickPacket(2000, 2), 1)
	assert.Empty(t, cmp.Diff(sessions, result))
}

func TestUpdateRaceSessions_LapCounterReset(t *testing.T) {
	sessions := model.NewSessions()
	prevLap := 0
	for i, p := range []model.Packet{
		lapPacket(1000, 1, 61),
		lapPacket(2000, 2, 62),
		lapPacket(3000, 3, 63),
	} {
		sessions = UpdateRaceSessions(sessions, p, prevLap)
		prevLap = i + 1
	}
	require.Equal(t, 1, sessions.Len())
	require.Len(t, sessions.Latest().Laps, 3)

	// counter reset: new race, old race preserved unmodified
	result := UpdateRaceSessions(sessions, lapPacket(9000, 1, 59), 3)
	require.Equal(t, 2, result.Len())

	oldRace := result.Races[result.Order[0]]
	assert.Len(t, oldRace.Laps, 3)
	newRace := result.Latest()
	assert.Equal(t, model.RaceID(9000), newRace.ID)
	require.Contains(t, newRace.Laps, 1)
	assert.InDelta(t, 59.0, newRace.Laps[1].Stats["Time"], 1e-9)
}

func TestUpdateRaceSessions_OverwritesLap(t *testing.T) {
	sessions := UpdateRaceSessions(model.NewSessions(), lapPacket(1000, 1, 61), 0)
	// same lap reported again (corrected stats)
	sessions = UpdateRaceSessions(sessions, lapPacket(1100, 1, 60), 1)

	require.Equal(t, 1, sessions.Len())
	race := sessions.Latest()
	require.Len(t, race.Laps, 1)
	assert.InDelta(t, 60.0, race.Laps[1].Stats["Time"], 1e-9)
	assert.Equal(t, []int{1}, race.LapOrder)
}

func TestUpdateRaceSessions_Pure(t *testing.T) {
	sessions := UpdateRaceSessions(model.NewSessions(), lapPacket(1000, 1, 61), 0)
	packet := lapPacket(2000, 2, 62)

	first := UpdateRaceSessions(sessions, packet, 1)
	second := UpdateRaceSessions(sessions, packet, 1)

	// deterministic
	assert.Empty(t, cmp.Diff(first, second))
	// input untouched
	require.Equal(t, 1, sessions.Len())
	assert.Len(t, sessions.Latest().Laps, 1)
}

func TestReplay_MatchesIncremental(t *testing.T) {
	packets := []model.Packet{
		tickPacket(500, 0),
		lapPacket(1000, 1, 61),
		tickPacket(1500, 2),
		lapPacket(2000, 2, 62),
		lapPacket(3000, 3, 63),
		// new race after counter reset
		lapPacket(9000, 1, 58),
		lapPacket(10000, 2, 59),
	}

	incremental := model.NewSessions()
	prevLap := 0
	for _, p := range packets {
		incremental = UpdateRaceSessions(incremental, p, prevLap)
		if lap, ok := p.CurrentLap(); ok {
			prevLap = lap
		}
	}

	replayed, finalLap := Replay(packets)
	assert.Empty(t, cmp.Diff(incremental, replayed))
	assert.Equal(t, 2, finalLap)
	require.Equal(t, 2, replayed.Len())
	assert.Len(t, replayed.Races[replayed.Order[0]].Laps, 3)
	assert.Len(t, replayed.Races[replayed.Order[1]].Laps, 2)
}
