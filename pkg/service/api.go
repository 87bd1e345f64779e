// Package service provides the client side of the external historic data
// service used for backfill and user triggered historic loads.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/solarview/telemetry-core-go/pkg/model"
)

// History is the external historic data service contract.
type History interface {
	// FetchRange returns all packets of the vehicle within [startMs, endMs).
	FetchRange(ctx context.Context, vehicleID string, startMs, endMs int64) ([]model.Packet, error)
	// FetchAvailableDays returns the days for which historic data exists.
	FetchAvailableDays(ctx context.Context, vehicleID string) ([]time.Time, error)
}

// InvalidRangeError rejects a historic request before any state is touched.
type InvalidRangeError struct {
	StartMs int64
	EndMs   int64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: start %d >= end %d", e.StartMs, e.EndMs)
}

// BackfillError wraps a failed historic fetch. Non-fatal and retryable;
// the buffer is left unchanged.
type BackfillError struct {
	Cause error
}

func (e *BackfillError) Error() string {
	return fmt.Sprintf("backfill failed: %v", e.Cause)
}

func (e *BackfillError) Unwrap() error { return e.Cause }

// ValidateRange checks a historic request range.
func ValidateRange(startMs, endMs int64) error {
	if startMs >= endMs {
		return &InvalidRangeError{StartMs: startMs, EndMs: endMs}
	}
	return nil
}
