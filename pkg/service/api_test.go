package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRange(t *testing.T) {
	tests := []struct {
		name    string
		startMs int64
		endMs   int64
		wantErr bool
	}{
		{"valid", 1000, 2000, false},
		{"empty", 1000, 1000, true},
		{"inverted", 2000, 1000, true},
		{"negative but ordered", -2000, -1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRange(tt.startMs, tt.endMs)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var rangeErr *InvalidRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.startMs, rangeErr.StartMs)
			assert.Equal(t, tt.endMs, rangeErr.EndMs)
		})
	}
}

func TestBackfillError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("request timed out")
	err := &BackfillError{Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "backfill failed")
}

func TestNatsHistory_RejectsInvalidRangeBeforeRequest(t *testing.T) {
	// nil connection: a request attempt would panic, so an error here
	// proves validation happens first
	h := NewNatsHistory(nil)
	_, err := h.FetchRange(context.Background(), "sv1", 5000, 1000)
	var rangeErr *InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))
}
