// Package viewport synchronizes zoom, pan and live-lock state across the
// chart views of one sync group. Only the four command methods mutate the
// state; chart consumers are read-only observers.
package viewport

import (
	"sync"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
	"github.com/solarview/telemetry-core-go/pkg/service"
	"github.com/solarview/telemetry-core-go/pkg/utils/broadcast"
)

type (
	Coordinator struct {
		mu     sync.Mutex
		state  model.ViewportState
		buffer *history.Buffer
		source chan model.ViewportState
		bcst   broadcast.BroadcastServer[model.ViewportState]
		l      *log.Logger
	}
	Option func(*Coordinator)
)

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.l = l }
}

func NewCoordinator(buffer *history.Buffer, opts ...Option) *Coordinator {
	ret := &Coordinator{
		state:  model.ViewportState{LockedToLive: true},
		buffer: buffer,
		source: make(chan model.ViewportState, 1),
		l:      log.Default().Named("viewport"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.bcst = broadcast.NewBroadcastServer("viewport", ret.source)
	return ret
}

// LockToLive clears any fixed range and resumes auto scroll to the newest
// sample.
func (c *Coordinator) LockToLive() {
	c.mu.Lock()
	c.state = model.ViewportState{LockedToLive: true}
	state := c.state
	c.mu.Unlock()
	c.publish(state)
}

// PanBy shifts the visible range by deltaMs (negative values pan into the
// past), clamped to the buffer bounds. Clears the live lock.
func (c *Coordinator) PanBy(deltaMs int64) {
	c.mu.Lock()
	cur, ok := c.currentRangeLocked()
	if !ok {
		c.mu.Unlock()
		return
	}
	next := model.TimeRange{StartMs: cur.StartMs + deltaMs, EndMs: cur.EndMs + deltaMs}
	c.state = model.ViewportState{VisibleRange: c.clampLocked(next)}
	state := c.state
	c.mu.Unlock()
	c.publish(state)
}

// ScaleBy grows (factor > 1) or shrinks the visible range around its
// center, clamped to the buffer bounds. Clears the live lock.
func (c *Coordinator) ScaleBy(factor float64) {
	if factor <= 0 {
		return
	}
	c.mu.Lock()
	cur, ok := c.currentRangeLocked()
	if !ok {
		c.mu.Unlock()
		return
	}
	center := (cur.StartMs + cur.EndMs) / 2
	halfSpan := int64(float64(cur.Span()) * factor / 2)
	if halfSpan < 1 {
		halfSpan = 1
	}
	next := model.TimeRange{StartMs: center - halfSpan, EndMs: center + halfSpan}
	c.state = model.ViewportState{VisibleRange: c.clampLocked(next)}
	state := c.state
	c.mu.Unlock()
	c.publish(state)
}

// ZoomToRange fixes the visible range explicitly. Clears the live lock.
func (c *Coordinator) ZoomToRange(startMs, endMs int64) error {
	if err := service.ValidateRange(startMs, endMs); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = model.ViewportState{
		VisibleRange: c.clampLocked(model.TimeRange{StartMs: startMs, EndMs: endMs}),
	}
	state := c.state
	c.mu.Unlock()
	c.publish(state)
	return nil
}

// State returns a copy of the current viewport state.
func (c *Coordinator) State() model.ViewportState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ret := c.state
	if c.state.VisibleRange != nil {
		r := *c.state.VisibleRange
		ret.VisibleRange = &r
	}
	return ret
}

// Subscribe delivers viewport changes to a chart consumer.
func (c *Coordinator) Subscribe() <-chan model.ViewportState {
	return c.bcst.Subscribe()
}

func (c *Coordinator) CancelSubscription(ch <-chan model.ViewportState) {
	c.bcst.CancelSubscription(ch)
}

func (c *Coordinator) Close() {
	c.bcst.Close()
}

// currentRangeLocked resolves the range a relative command operates on:
// the fixed range if set, otherwise the full buffer extent.
func (c *Coordinator) currentRangeLocked() (model.TimeRange, bool) {
	if c.state.VisibleRange != nil {
		return *c.state.VisibleRange, true
	}
	earliest, latest, ok := c.buffer.Bounds()
	if !ok || earliest == latest {
		return model.TimeRange{}, false
	}
	return model.TimeRange{StartMs: earliest, EndMs: latest}, true
}

// clampLocked keeps the range within the buffer extent, preserving the
// span where possible.
func (c *Coordinator) clampLocked(r model.TimeRange) *model.TimeRange {
	earliest, latest, ok := c.buffer.Bounds()
	if !ok {
		return &r
	}
	span := r.Span()
	if span >= latest-earliest {
		return &model.TimeRange{StartMs: earliest, EndMs: latest}
	}
	if r.StartMs < earliest {
		return &model.TimeRange{StartMs: earliest, EndMs: earliest + span}
	}
	if r.EndMs > latest {
		return &model.TimeRange{StartMs: latest - span, EndMs: latest}
	}
	return &r
}

func (c *Coordinator) publish(state model.ViewportState) {
	select {
	case c.source <- state:
	default:
		c.l.Debug("viewport update dropped, consumer too slow")
	}
}
