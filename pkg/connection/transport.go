package connection

import (
	"context"
	"fmt"
)

// Transport is the contract of the external messaging transport carrying
// the telemetry stream: connect, receive frames, send control messages,
// get notified on close. Reconnection policy is owned by the Manager, not
// the transport.
type Transport interface {
	// Connect establishes the transport. May be called again after the
	// Closed channel fired.
	Connect(ctx context.Context) error
	// Frames delivers raw inbound frames of the current connection.
	Frames() <-chan []byte
	// Send publishes an encoded control message.
	Send(data []byte) error
	// Closed fires once when the current connection is lost.
	Closed() <-chan error
	Close() error
}

// TransportError marks a dropped connection. The manager reacts by
// entering the reconnect loop; the buffer is preserved.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
