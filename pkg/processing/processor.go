// Package processing ties the frame pipeline together: decode, record in
// the history buffer, update race sessions. One frame is fully applied
// before the next one starts.
package processing

import (
	"sync"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/codec"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
	"github.com/solarview/telemetry-core-go/pkg/processing/race"
)

type (
	// Listener observes every successfully applied packet. Called after
	// the packet was recorded, outside the processor lock.
	Listener func(model.Packet)

	Processor struct {
		mu        sync.Mutex
		buffer    *history.Buffer
		sessions  model.Sessions
		prevLap   int
		listeners []Listener
		l         *log.Logger
	}
	Option func(*Processor)
)

func WithBuffer(b *history.Buffer) Option {
	return func(p *Processor) { p.buffer = b }
}

func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.l = l }
}

func WithListener(l Listener) Option {
	return func(p *Processor) { p.listeners = append(p.listeners, l) }
}

// WithCheckpoint restores a previously saved lap counter so replay can
// continue from a checkpoint instead of the stream start.
func WithCheckpoint(sessions model.Sessions, prevLap int) Option {
	return func(p *Processor) {
		p.sessions = sessions
		p.prevLap = prevLap
	}
}

func NewProcessor(opts ...Option) *Processor {
	ret := &Processor{
		sessions: model.NewSessions(),
		l:        log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.buffer == nil {
		ret.buffer = history.NewBuffer()
	}
	return ret
}

// ProcessFrame decodes and applies one inbound frame. A decode failure is
// returned without touching any state; the caller drops the frame.
func (p *Processor) ProcessFrame(data []byte) error {
	packet, err := codec.Decode(data)
	if err != nil {
		return err
	}
	p.Process(packet)
	return nil
}

// Process applies one decoded packet: append first, then lap detection,
// so detection always observes a buffer containing the triggering packet.
func (p *Processor) Process(packet model.Packet) {
	p.mu.Lock()
	p.buffer.Append(packet)
	p.sessions = race.UpdateRaceSessions(p.sessions, packet, p.prevLap)
	if lap, ok := packet.CurrentLap(); ok {
		p.prevLap = lap
	}
	p.mu.Unlock()

	for _, l := range p.listeners {
		l(packet)
	}
}

func (p *Processor) Buffer() *history.Buffer { return p.buffer }

// Sessions returns the current race sessions. The value shares race
// pointers with the processor; treat it as read-only.
func (p *Processor) Sessions() model.Sessions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

// Checkpoint returns the state needed to resume detection later.
func (p *Processor) Checkpoint() (model.Sessions, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions, p.prevLap
}

// Reseed re-derives the race sessions from the given packet history.
// Used after a destructive historic load replaced the buffer contents.
func (p *Processor) Reseed(packets []model.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions, p.prevLap = race.Replay(packets)
}
