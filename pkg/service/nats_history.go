package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/solarview/telemetry-core-go/log"
	"github.com/solarview/telemetry-core-go/pkg/codec"
	"github.com/solarview/telemetry-core-go/pkg/model"
)

// request/reply subjects of the history service
const (
	subjectRange = "history.%s.range" // vehicleID
	subjectDays  = "history.%s.days"
)

type (
	NatsHistory struct {
		conn    *nats.Conn
		timeout time.Duration
		l       *log.Logger
	}
	NatsHistoryOption func(*NatsHistory)

	rangeRequest struct {
		StartMs int64 `cbor:"startMs"`
		EndMs   int64 `cbor:"endMs"`
	}
	rangeReply struct {
		Packets []model.Packet `cbor:"packets"`
	}
	daysReply struct {
		// midnight UTC of each available day, epoch ms
		Days []int64 `cbor:"days"`
	}
)

func WithTimeout(d time.Duration) NatsHistoryOption {
	return func(h *NatsHistory) { h.timeout = d }
}

func WithLogger(l *log.Logger) NatsHistoryOption {
	return func(h *NatsHistory) { h.l = l }
}

func NewNatsHistory(conn *nats.Conn, opts ...NatsHistoryOption) *NatsHistory {
	ret := &NatsHistory{
		conn:    conn,
		timeout: 10 * time.Second,
		l:       log.Default().Named("history.client"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

//nolint:whitespace // can't make both editor and linter happy
func (h *NatsHistory) FetchRange(
	ctx context.Context, vehicleID string, startMs, endMs int64,
) ([]model.Packet, error) {
	if err := ValidateRange(startMs, endMs); err != nil {
		return nil, err
	}
	reqData, err := codec.Encode(rangeRequest{StartMs: startMs, EndMs: endMs})
	if err != nil {
		return nil, &BackfillError{Cause: err}
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	msg, err := h.conn.RequestWithContext(ctx,
		fmt.Sprintf(subjectRange, vehicleID), reqData)
	if err != nil {
		return nil, &BackfillError{Cause: err}
	}
	var reply rangeReply
	if err := codec.Unmarshal(msg.Data, &reply); err != nil {
		return nil, &BackfillError{Cause: err}
	}
	h.l.Debug("fetched range",
		log.String("vehicle", vehicleID),
		log.Int64("startMs", startMs),
		log.Int64("endMs", endMs),
		log.Int("num", len(reply.Packets)))
	return reply.Packets, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (h *NatsHistory) FetchAvailableDays(
	ctx context.Context, vehicleID string,
) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	msg, err := h.conn.RequestWithContext(ctx,
		fmt.Sprintf(subjectDays, vehicleID), nil)
	if err != nil {
		return nil, &BackfillError{Cause: err}
	}
	var reply daysReply
	if err := codec.Unmarshal(msg.Data, &reply); err != nil {
		return nil, &BackfillError{Cause: err}
	}
	ret := make([]time.Time, 0, len(reply.Days))
	for _, d := range reply.Days {
		ret = append(ret, time.UnixMilli(d).UTC())
	}
	return ret, nil
}
