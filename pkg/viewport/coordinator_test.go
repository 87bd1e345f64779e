//nolint:funlen // ok for tests
package viewport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
	"github.com/solarview/telemetry-core-go/pkg/service"
)

func filledBuffer(tb testing.TB, timestamps ...int64) *history.Buffer {
	tb.Helper()
	b := history.NewBuffer()
	for _, ts := range timestamps {
		b.Append(model.Packet{model.KeyTimestamp: ts})
	}
	return b
}

func TestCoordinator_StartsLockedToLive(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 1000, 2000))
	state := c.State()
	assert.True(t, state.LockedToLive)
	assert.Nil(t, state.VisibleRange)
}

func TestCoordinator_ZoomClearsLiveLock(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	require.NoError(t, c.ZoomToRange(2000, 4000))

	state := c.State()
	assert.False(t, state.LockedToLive)
	require.NotNil(t, state.VisibleRange)
	assert.Equal(t, int64(2000), state.VisibleRange.StartMs)
	assert.Equal(t, int64(4000), state.VisibleRange.EndMs)
}

func TestCoordinator_ZoomRejectsInvalidRange(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	err := c.ZoomToRange(4000, 2000)
	var rangeErr *service.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	// state untouched
	assert.True(t, c.State().LockedToLive)
}

func TestCoordinator_PanClampsToBounds(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	require.NoError(t, c.ZoomToRange(2000, 4000))

	// pan past the start: span preserved, snapped to the earliest sample
	c.PanBy(-5000)
	state := c.State()
	require.NotNil(t, state.VisibleRange)
	assert.Equal(t, int64(0), state.VisibleRange.StartMs)
	assert.Equal(t, int64(2000), state.VisibleRange.EndMs)

	// pan past the end: snapped to the latest sample
	c.PanBy(50000)
	state = c.State()
	assert.Equal(t, int64(8000), state.VisibleRange.StartMs)
	assert.Equal(t, int64(10000), state.VisibleRange.EndMs)
}

func TestCoordinator_ScaleAroundCenter(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 100000))
	require.NoError(t, c.ZoomToRange(40000, 60000))

	c.ScaleBy(0.5)
	state := c.State()
	require.NotNil(t, state.VisibleRange)
	assert.Equal(t, int64(45000), state.VisibleRange.StartMs)
	assert.Equal(t, int64(55000), state.VisibleRange.EndMs)

	// growing beyond the buffer extent clamps to the full extent
	c.ScaleBy(100)
	state = c.State()
	assert.Equal(t, int64(0), state.VisibleRange.StartMs)
	assert.Equal(t, int64(100000), state.VisibleRange.EndMs)
}

func TestCoordinator_ScaleIgnoresInvalidFactor(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	require.NoError(t, c.ZoomToRange(2000, 4000))
	before := c.State()

	c.ScaleBy(0)
	c.ScaleBy(-1)
	assert.Equal(t, before, c.State())
}

func TestCoordinator_RelativeCommandOnEmptyBufferIsNoop(t *testing.T) {
	c := NewCoordinator(history.NewBuffer())
	c.PanBy(-1000)
	c.ScaleBy(2)
	assert.True(t, c.State().LockedToLive)
}

func TestCoordinator_LockToLiveClearsRange(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	require.NoError(t, c.ZoomToRange(2000, 4000))

	c.LockToLive()
	state := c.State()
	assert.True(t, state.LockedToLive)
	assert.Nil(t, state.VisibleRange)
}

func TestCoordinator_PublishesToSubscribers(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	ch := c.Subscribe()
	defer c.CancelSubscription(ch)

	require.NoError(t, c.ZoomToRange(2000, 4000))

	state := <-ch
	require.NotNil(t, state.VisibleRange)
	assert.Equal(t, int64(2000), state.VisibleRange.StartMs)
}

func TestCoordinator_StateReturnsCopy(t *testing.T) {
	c := NewCoordinator(filledBuffer(t, 0, 10000))
	require.NoError(t, c.ZoomToRange(2000, 4000))

	state := c.State()
	state.VisibleRange.StartMs = 9999
	assert.Equal(t, int64(2000), c.State().VisibleRange.StartMs)
}
