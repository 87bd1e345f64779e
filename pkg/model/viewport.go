package model

// TimeRange is a half-open [StartMs, EndMs) window in epoch milliseconds.
type TimeRange struct {
	StartMs int64 `json:"startMs"`
	EndMs   int64 `json:"endMs"`
}

func (r TimeRange) Span() int64 { return r.EndMs - r.StartMs }

// ViewportState is shared by all chart consumers of one sync group.
// When LockedToLive is set VisibleRange is nil and charts follow the
// newest sample.
type ViewportState struct {
	LockedToLive bool       `json:"lockedToLive"`
	VisibleRange *TimeRange `json:"visibleRange,omitempty"`
}
