// Package connection owns the transport lifecycle: connect, decode,
// dispatch, staleness detection, reconnect with backoff and gap backfill.
package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/codec"
	"github.com/solarview/telemetry-core-go/pkg/history"
	"github.com/solarview/telemetry-core-go/pkg/model"
	"github.com/solarview/telemetry-core-go/pkg/processing"
	"github.com/solarview/telemetry-core-go/pkg/service"
	"github.com/solarview/telemetry-core-go/pkg/utils/broadcast"
)

// errNoHistoryService rejects historic loads when no history service was
// configured (ingest keeps running live-only in that case).
var errNoHistoryService = errors.New("history service not configured")

// Freshness classifies the age of the newest received packet.
type Freshness int

const (
	FreshnessFresh Freshness = iota
	FreshnessDegraded
	FreshnessStale
)

func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessDegraded:
		return "degraded"
	case FreshnessStale:
		return "stale"
	}
	return "unknown"
}

type (
	// Status is published on every heartbeat tick and on state changes.
	Status struct {
		State      model.ConnState
		LastPacket time.Time
		Freshness  Freshness
	}

	Manager struct {
		transport  Transport
		processor  *processing.Processor
		historySvc service.History
		vehicleID  string

		checkInterval time.Duration
		degradedAfter time.Duration
		staleAfter    time.Duration
		maxBackoff    time.Duration

		mu          sync.Mutex
		state       model.ConnState
		loading     bool           // destructive historic load in flight
		queued      []model.Packet // live packets held back during a load
		pendingLoad context.CancelFunc

		lastPacketMs atomic.Int64

		statusSource chan Status
		statusBcst   broadcast.BroadcastServer[Status]

		cancel context.CancelFunc
		done   chan struct{}

		numFrames       atomic.Int64
		numDecodeErrors atomic.Int64
		numReconnects   atomic.Int64

		l *log.Logger
	}
	Option func(*Manager)
)

func WithTransport(t Transport) Option {
	return func(m *Manager) { m.transport = t }
}

func WithProcessor(p *processing.Processor) Option {
	return func(m *Manager) { m.processor = p }
}

func WithHistoryService(h service.History) Option {
	return func(m *Manager) { m.historySvc = h }
}

func WithVehicleID(id string) Option {
	return func(m *Manager) { m.vehicleID = id }
}

func WithCheckInterval(d time.Duration) Option {
	return func(m *Manager) { m.checkInterval = d }
}

func WithStaleness(degraded, stale time.Duration) Option {
	return func(m *Manager) {
		m.degradedAfter = degraded
		m.staleAfter = stale
	}
}

func WithMaxBackoff(d time.Duration) Option {
	return func(m *Manager) { m.maxBackoff = d }
}

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.l = l }
}

func NewManager(opts ...Option) *Manager {
	ret := &Manager{
		checkInterval: time.Second,
		degradedAfter: 5 * time.Second,
		staleAfter:    10 * time.Second,
		maxBackoff:    30 * time.Second,
		state:         model.StateDisconnected,
		statusSource:  make(chan Status, 1),
		done:          make(chan struct{}),
		l:             log.Default().Named("connection"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.processor == nil {
		ret.processor = processing.NewProcessor()
	}
	ret.statusBcst = broadcast.NewBroadcastServer("connstatus", ret.statusSource)
	ret.setupMetrics()
	return ret
}

func (m *Manager) setState(s model.ConnState) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed {
		m.l.Info("connection state changed", log.String("state", s.String()))
		select {
		case m.statusSource <- Status{
			State:      s,
			LastPacket: m.LastPacketTime(),
			Freshness:  m.freshness(),
		}:
		default:
		}
	}
}

// Connect starts the connection lifecycle. It returns once the first
// connection attempt succeeded; reconnects afterwards happen in the
// background until Disconnect is called or ctx is cancelled.
func (m *Manager) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.setState(model.StateConnecting)
	if err := m.connectWithBackoff(runCtx); err != nil {
		m.setState(model.StateDisconnected)
		cancel()
		close(m.done)
		return err
	}
	m.setState(model.StateConnected)

	go m.run(runCtx)
	go m.heartbeat(runCtx)
	return nil
}

// Disconnect tears the connection down from any state.
func (m *Manager) Disconnect() {
	if m.cancel == nil {
		m.setState(model.StateDisconnected)
		return
	}
	m.cancel()
	if m.transport != nil {
		//nolint:errcheck // teardown
		m.transport.Close()
	}
	m.setState(model.StateDisconnected)
	m.statusBcst.Close()
	<-m.done
}

func (m *Manager) State() model.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastPacketTime returns the receive time of the newest packet (zero time
// before the first one). Exposed for the presentation layer's staleness
// indicator.
func (m *Manager) LastPacketTime() time.Time {
	ms := m.lastPacketMs.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (m *Manager) Buffer() *history.Buffer { return m.processor.Buffer() }

func (m *Manager) Processor() *processing.Processor { return m.processor }

// SubscribeStatus delivers heartbeat status updates. Consumers must
// cancel their subscription when done.
func (m *Manager) SubscribeStatus() <-chan Status {
	return m.statusBcst.Subscribe()
}

func (m *Manager) CancelStatusSubscription(ch <-chan Status) {
	m.statusBcst.CancelSubscription(ch)
}

// SendControl encodes and publishes an outbound control message.
func (m *Manager) SendControl(cmd any) error {
	data, err := codec.Encode(cmd)
	if err != nil {
		return err
	}
	return m.transport.Send(data)
}

// run is the single consumer pipeline: one frame is fully applied before
// the next one starts.
func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-m.transport.Frames():
			if !ok {
				continue
			}
			m.handleFrame(data)
		case err := <-m.transport.Closed():
			m.l.Warn("transport dropped", log.ErrorField(err))
			if !m.reconnect(ctx) {
				return
			}
		}
	}
}

func (m *Manager) handleFrame(data []byte) {
	m.mu.Lock()
	loading := m.loading
	m.mu.Unlock()

	if loading {
		// a destructive load is replacing the buffer; hold the packet
		// back and replay it once the load completed
		packet, err := codec.Decode(data)
		if err != nil {
			m.dropFrame(err)
			return
		}
		m.mu.Lock()
		m.queued = append(m.queued, packet)
		m.mu.Unlock()
		m.recordPacket()
		return
	}

	if err := m.processor.ProcessFrame(data); err != nil {
		m.dropFrame(err)
		return
	}
	m.recordPacket()
}

// dropFrame handles a malformed frame: log, count, continue. Never fatal
// for the stream.
func (m *Manager) dropFrame(err error) {
	var decodeErr *codec.DecodeError
	if errors.As(err, &decodeErr) {
		m.numDecodeErrors.Add(1)
		m.l.Warn("dropping malformed frame", log.ErrorField(err))
		return
	}
	m.l.Error("frame processing failed", log.ErrorField(err))
}

func (m *Manager) recordPacket() {
	m.numFrames.Add(1)
	m.lastPacketMs.Store(time.Now().UnixMilli())
}

// reconnect re-establishes the transport and backfills the gap. Returns
// false when ctx was cancelled.
func (m *Manager) reconnect(ctx context.Context) bool {
	m.setState(model.StateReconnecting)
	gapStart := m.lastPacketMs.Load()

	if err := m.connectWithBackoff(ctx); err != nil {
		m.l.Error("giving up reconnecting", log.ErrorField(err))
		m.setState(model.StateDisconnected)
		return false
	}
	m.numReconnects.Add(1)
	m.setState(model.StateConnected)

	if gapStart > 0 && m.historySvc != nil {
		// fetch what was missed during the outage; failure is retried on
		// the next drop, the buffer is left unchanged
		if err := m.backfill(ctx, gapStart, time.Now().UnixMilli()); err != nil {
			m.l.Warn("backfill after reconnect failed", log.ErrorField(err))
		}
	}
	return true
}

func (m *Manager) connectWithBackoff(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = m.maxBackoff
	bo.MaxElapsedTime = 0 // retry until ctx is cancelled
	return backoff.Retry(func() error {
		if err := m.transport.Connect(ctx); err != nil {
			m.l.Debug("connect attempt failed", log.ErrorField(err))
			return err
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

func (m *Manager) backfill(ctx context.Context, startMs, endMs int64) error {
	if startMs >= endMs {
		return nil
	}
	packets, err := m.historySvc.FetchRange(ctx, m.vehicleID, startMs, endMs)
	if err != nil {
		return err
	}
	m.Buffer().Extend(packets)
	m.l.Info("gap backfilled",
		log.Int64("startMs", startMs),
		log.Int64("endMs", endMs),
		log.Int("num", len(packets)))
	return nil
}

// LoadRange destructively replaces the buffer with the requested historic
// range and re-derives the race sessions from it. Live ingestion is held
// back while the load is in flight and replayed afterwards. A newer
// historic request supersedes a pending one (last request wins).
func (m *Manager) LoadRange(ctx context.Context, startMs, endMs int64) error {
	if err := service.ValidateRange(startMs, endMs); err != nil {
		return err
	}
	if m.historySvc == nil {
		return &service.BackfillError{Cause: errNoHistoryService}
	}
	reqCtx := m.beginLoad(ctx, true)
	defer m.finishLoad()

	packets, err := m.historySvc.FetchRange(reqCtx, m.vehicleID, startMs, endMs)
	if err != nil {
		return err
	}
	if reqCtx.Err() != nil {
		return reqCtx.Err() // superseded; a fresher request owns the buffer
	}
	m.Buffer().LoadRange(packets)
	m.processor.Reseed(m.Buffer().All())
	return nil
}

// ExtendRange merges the requested historic range into the buffer without
// discarding current contents ("load N extra minutes").
func (m *Manager) ExtendRange(ctx context.Context, startMs, endMs int64) error {
	if err := service.ValidateRange(startMs, endMs); err != nil {
		return err
	}
	if m.historySvc == nil {
		return &service.BackfillError{Cause: errNoHistoryService}
	}
	reqCtx := m.beginLoad(ctx, false)
	defer m.finishLoad()

	packets, err := m.historySvc.FetchRange(reqCtx, m.vehicleID, startMs, endMs)
	if err != nil {
		return err
	}
	if reqCtx.Err() != nil {
		return reqCtx.Err()
	}
	m.Buffer().Extend(packets)
	return nil
}

// beginLoad cancels any pending historic request and registers a new one.
// Destructive loads additionally pause live ingestion into the buffer.
func (m *Manager) beginLoad(ctx context.Context, destructive bool) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pendingLoad != nil {
		m.pendingLoad()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	m.pendingLoad = cancel
	if destructive {
		m.loading = true
		m.queued = nil
	}
	return reqCtx
}

func (m *Manager) finishLoad() {
	m.mu.Lock()
	m.pendingLoad = nil
	wasLoading := m.loading
	m.loading = false
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()

	if !wasLoading {
		return
	}
	for _, p := range queued {
		m.processor.Process(p)
	}
}

// heartbeat classifies stream freshness on a fixed interval and publishes
// it for the presentation layer. It is never blocked by frame handling or
// historic loads.
func (m *Manager) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := Status{
				State:      m.State(),
				LastPacket: m.LastPacketTime(),
				Freshness:  m.freshness(),
			}
			select {
			case m.statusSource <- status:
			default: // drop the tick rather than block the timer
			}
		}
	}
}

func (m *Manager) freshness() Freshness {
	last := m.LastPacketTime()
	if last.IsZero() {
		return FreshnessStale
	}
	age := time.Since(last)
	switch {
	case age <= m.degradedAfter:
		return FreshnessFresh
	case age <= m.staleAfter:
		return FreshnessDegraded
	default:
		return FreshnessStale
	}
}
