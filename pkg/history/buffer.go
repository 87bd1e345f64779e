// Package history keeps the bounded in-memory time series of packets.
package history

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/model"
)

const (
	DefaultCapacity    = 50_000
	DefaultToleranceMs = 5_000
)

type (
	Buffer struct {
		mu       sync.Mutex
		packets  []model.Packet
		capacity int
		// out-of-order arrivals within this window are insertion sorted,
		// older ones are appended at the tail and counted as disordered
		toleranceMs int64
		paused      bool
		// timestamp of the newest packet visible while paused
		pauseBoundary int64
		stats         Stats
		l             *log.Logger
	}
	Option func(*Buffer)

	// Stats carries counters for monitoring; they are never reset except
	// by Clear.
	Stats struct {
		Evicted    int // packets dropped at the head due to capacity
		Disordered int // packets older than the tolerance window
	}
)

func WithCapacity(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

func WithToleranceMs(ms int64) Option {
	return func(b *Buffer) { b.toleranceMs = ms }
}

func WithLogger(l *log.Logger) Option {
	return func(b *Buffer) { b.l = l }
}

func NewBuffer(opts ...Option) *Buffer {
	ret := &Buffer{
		packets:     make([]model.Packet, 0),
		capacity:    DefaultCapacity,
		toleranceMs: DefaultToleranceMs,
		l:           log.Default().Named("history"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Append inserts a live packet at its timestamp position and evicts from
// the head when the capacity is exceeded. While paused the packet is still
// recorded so no live data is lost.
func (b *Buffer) Append(p model.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ts := p.Timestamp()
	n := len(b.packets)
	switch {
	case n == 0 || ts >= b.packets[n-1].Timestamp():
		b.packets = append(b.packets, p)
	case b.packets[n-1].Timestamp()-ts <= b.toleranceMs:
		idx, _ := slices.BinarySearchFunc(b.packets, ts,
			func(item model.Packet, target int64) int {
				return int(item.Timestamp() - target)
			})
		b.packets = slices.Insert(b.packets, idx, p)
	default:
		// too old to sort in; keep it rather than lose it
		b.stats.Disordered++
		b.packets = append(b.packets, p)
	}
	b.evictLocked()
}

// LoadRange replaces the entire buffer contents with the given packets
// (sorted, deduplicated by timestamp). Destructive; confirmation is the
// caller's responsibility.
func (b *Buffer) LoadRange(packets []model.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = normalize(packets)
	b.evictLocked()
	b.l.Debug("buffer replaced", log.Int("len", len(b.packets)))
}

// Extend merges additional historic packets into the buffer without
// discarding current contents. Packets whose timestamp is already present
// are ignored.
func (b *Buffer) Extend(packets []model.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	known := make(map[int64]struct{}, len(b.packets))
	for _, p := range b.packets {
		known[p.Timestamp()] = struct{}{}
	}
	added := 0
	for _, p := range packets {
		if _, ok := known[p.Timestamp()]; ok {
			continue
		}
		known[p.Timestamp()] = struct{}{}
		b.packets = append(b.packets, p)
		added++
	}
	if added > 0 {
		slices.SortStableFunc(b.packets, byTimestamp)
		b.evictLocked()
	}
	b.l.Debug("buffer extended",
		log.Int("added", added), log.Int("len", len(b.packets)))
}

// Pause freezes the visible tail at the newest current packet. Live
// appends continue to be recorded.
func (b *Buffer) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return
	}
	b.paused = true
	if n := len(b.packets); n > 0 {
		b.pauseBoundary = b.packets[n-1].Timestamp()
	}
}

// Resume re-arms live tail following.
func (b *Buffer) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = false
	b.pauseBoundary = 0
}

// ResetToLive clears all history and re-arms live tail following.
// Destructive and irreversible; confirmation is the caller's concern.
func (b *Buffer) ResetToLive() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = make([]model.Packet, 0)
	b.paused = false
	b.pauseBoundary = 0
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.packets = make([]model.Packet, 0)
	b.stats = Stats{}
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

func (b *Buffer) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// All returns a copy of the full buffer contents.
func (b *Buffer) All() []model.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.packets)
}

// Visible returns the packets consumers should display: the full buffer,
// or only packets up to the pause boundary while paused.
func (b *Buffer) Visible() []model.Packet {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.paused {
		return slices.Clone(b.packets)
	}
	return lo.Filter(b.packets, func(p model.Packet, _ int) bool {
		return p.Timestamp() <= b.pauseBoundary
	})
}

// Bounds returns the earliest and latest timestamp. ok is false for an
// empty buffer.
func (b *Buffer) Bounds() (earliest, latest int64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.packets) == 0 {
		return 0, 0, false
	}
	return b.packets[0].Timestamp(), b.packets[len(b.packets)-1].Timestamp(), true
}

func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Buffer) evictLocked() {
	if over := len(b.packets) - b.capacity; over > 0 {
		b.stats.Evicted += over
		b.packets = slices.Delete(b.packets, 0, over)
	}
}

func byTimestamp(a, b model.Packet) int {
	switch {
	case a.Timestamp() < b.Timestamp():
		return -1
	case a.Timestamp() > b.Timestamp():
		return 1
	default:
		return 0
	}
}

func normalize(packets []model.Packet) []model.Packet {
	sorted := slices.Clone(packets)
	slices.SortStableFunc(sorted, byTimestamp)
	return lo.UniqBy(sorted, func(p model.Packet) int64 { return p.Timestamp() })
}
