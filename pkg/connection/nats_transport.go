package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/solarview/telemetry-core-go/log"
)

// telemetry stream subjects
const (
	subjectFrames  = "telemetry.%s"      // vehicleID
	subjectControl = "telemetry.%s.ctrl" // vehicleID
)

type (
	// NatsTransport delivers telemetry frames via NATS. The connection is
	// created without client side reconnection so the Manager's state
	// machine owns backoff and backfill.
	NatsTransport struct {
		url       string
		vehicleID string
		frameCap  int
		l         *log.Logger

		mu     sync.Mutex
		conn   *nats.Conn
		sub    *nats.Subscription
		frames chan []byte
		closed chan error
	}
	NatsTransportOption func(*NatsTransport)
)

func WithFrameBuffer(n int) NatsTransportOption {
	return func(t *NatsTransport) {
		if n > 0 {
			t.frameCap = n
		}
	}
}

func WithTransportLogger(l *log.Logger) NatsTransportOption {
	return func(t *NatsTransport) { t.l = l }
}

func NewNatsTransport(url, vehicleID string, opts ...NatsTransportOption) *NatsTransport {
	ret := &NatsTransport{
		url:       url,
		vehicleID: vehicleID,
		frameCap:  256,
		l:         log.Default().Named("transport"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (t *NatsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardownLocked()
	// per-connection channels; the handlers below capture these locals so
	// a late callback of an old connection can't leak into a newer one
	frames := make(chan []byte, t.frameCap)
	closed := make(chan error, 1)
	t.frames = frames
	t.closed = closed

	conn, err := nats.Connect(t.url,
		nats.Name(fmt.Sprintf("stc-%s", t.vehicleID)),
		nats.NoReconnect(),
		nats.ClosedHandler(func(c *nats.Conn) {
			select {
			case closed <- c.LastError():
			default:
			}
		}))
	if err != nil {
		return &TransportError{Cause: err}
	}
	sub, err := conn.Subscribe(fmt.Sprintf(subjectFrames, t.vehicleID),
		func(msg *nats.Msg) {
			select {
			case frames <- msg.Data:
			case <-ctx.Done():
			}
		})
	if err != nil {
		conn.Close()
		return &TransportError{Cause: err}
	}
	t.conn = conn
	t.sub = sub
	t.l.Debug("transport connected",
		log.String("url", t.url), log.String("vehicle", t.vehicleID))
	return nil
}

func (t *NatsTransport) Frames() <-chan []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *NatsTransport) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return &TransportError{Cause: nats.ErrConnectionClosed}
	}
	if err := conn.Publish(fmt.Sprintf(subjectControl, t.vehicleID), data); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

func (t *NatsTransport) Closed() <-chan error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *NatsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
	return nil
}

func (t *NatsTransport) teardownLocked() {
	if t.sub != nil {
		//nolint:errcheck // connection is going away anyway
		t.sub.Unsubscribe()
		t.sub = nil
	}
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}
