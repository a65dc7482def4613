package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusDownloading, true},
		{StatusQueued, StatusStopped, true},
		{StatusQueued, StatusDone, false},
		{StatusDownloading, StatusDone, true},
		{StatusDownloading, StatusFailed, true},
		{StatusDownloading, StatusQueued, false},
		{StatusFailed, StatusQueued, true},
		{StatusStopped, StatusQueued, true},
		{StatusStopped, StatusStopped, true},
		{StatusDone, StatusQueued, false},
		{StatusDone, StatusStopped, false},
		{Status("bogus"), StatusQueued, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusDone.Valid())
	assert.False(t, Status("completed").Valid())
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, 1500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateError(string(long)), maxErrorLen)
	assert.Equal(t, "short", truncateError("short"))

	// A multi-byte rune straddling the limit is dropped whole.
	s := string(long[:maxErrorLen-1]) + "é"
	got := truncateError(s)
	assert.Len(t, got, maxErrorLen-1)
}

func TestErrActive_IsValidation(t *testing.T) {
	assert.ErrorIs(t, ErrActive, ErrValidation)
}
