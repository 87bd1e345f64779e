package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarview/telemetry-core-go/pkg/codec"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
)

func encode(t *testing.T, p model.Packet) []byte {
	t.Helper()
	data, err := codec.Encode(p)
	require.NoError(t, err)
	return data
}

func TestProcessor_FrameAppliedAtomically(t *testing.T) {
	buffer := history.NewBuffer()
	p := NewProcessor(WithBuffer(buffer))

	err := p.ProcessFrame(encode(t, model.Packet{
		model.KeyTimestamp:  int64(1000),
		model.KeyCurrentLap: int64(1),
		"LL_Time":           60.5,
	}))
	require.NoError(t, err)

	// both the buffer and the detector saw the packet
	assert.Equal(t, 1, buffer.Len())
	sessions := p.Sessions()
	require.Equal(t, 1, sessions.Len())
	assert.Contains(t, sessions.Latest().Laps, 1)
}

func TestProcessor_MalformedFrameLeavesStateUntouched(t *testing.T) {
	buffer := history.NewBuffer()
	p := NewProcessor(WithBuffer(buffer))

	err := p.ProcessFrame([]byte{0xff, 0xfe})
	require.Error(t, err)
	var decodeErr *codec.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, buffer.Len())
	assert.Equal(t, 0, p.Sessions().Len())
}

func TestProcessor_TracksLapCounter(t *testing.T) {
	p := NewProcessor()
	p.Process(model.Packet{
		model.KeyTimestamp:  int64(1000),
		model.KeyCurrentLap: int64(3),
		"LL_Time":           61.0,
	})
	// counter reset opens a new race
	p.Process(model.Packet{
		model.KeyTimestamp:  int64(9000),
		model.KeyCurrentLap: int64(1),
		"LL_Time":           59.0,
	})
	assert.Equal(t, 2, p.Sessions().Len())

	_, prevLap := p.Checkpoint()
	assert.Equal(t, 1, prevLap)
}

func TestProcessor_Reseed(t *testing.T) {
	p := NewProcessor()
	p.Process(model.Packet{
		model.KeyTimestamp:  int64(1000),
		model.KeyCurrentLap: int64(1),
		"LL_Time":           61.0,
	})

	p.Reseed([]model.Packet{
		{model.KeyTimestamp: int64(5000), model.KeyCurrentLap: int64(1), "LL_Time": 55.0},
		{model.KeyTimestamp: int64(6000), model.KeyCurrentLap: int64(2), "LL_Time": 56.0},
	})

	sessions := p.Sessions()
	require.Equal(t, 1, sessions.Len())
	assert.Equal(t, model.RaceID(5000), sessions.Latest().ID)
	assert.Len(t, sessions.Latest().Laps, 2)
	_, prevLap := p.Checkpoint()
	assert.Equal(t, 2, prevLap)
}

func TestProcessor_ListenerObservesPackets(t *testing.T) {
	var seen []model.Packet
	p := NewProcessor(WithListener(func(packet model.Packet) {
		seen = append(seen, packet)
	}))

	p.Process(model.Packet{model.KeyTimestamp: int64(1000)})
	require.NoError(t, p.ProcessFrame(encode(t, model.Packet{
		model.KeyTimestamp: int64(2000),
	})))
	// a dropped frame must not reach listeners
	require.Error(t, p.ProcessFrame([]byte{0xff, 0xfe}))

	require.Len(t, seen, 2)
	assert.Equal(t, int64(1000), seen[0].Timestamp())
	assert.Equal(t, int64(2000), seen[1].Timestamp())
}

func TestProcessor_Checkpoint(t *testing.T) {
	p := NewProcessor()
	p.Process(model.Packet{
		model.KeyTimestamp:  int64(1000),
		model.KeyCurrentLap: int64(1),
		"LL_Time":           61.0,
	})
	sessions, prevLap := p.Checkpoint()

	resumed := NewProcessor(WithCheckpoint(sessions, prevLap))
	resumed.Process(model.Packet{
		model.KeyTimestamp:  int64(2000),
		model.KeyCurrentLap: int64(2),
		"LL_Time":           62.0,
	})
	require.Equal(t, 1, resumed.Sessions().Len())
	assert.Len(t, resumed.Sessions().Latest().Laps, 2)
}
