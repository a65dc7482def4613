package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a job record does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrValidation indicates a rejected request.
	ErrValidation = errors.New("validation failed")

	// ErrActive is returned when an operation needs an idle job.
	ErrActive = fmt.Errorf("%w: job is still active", ErrValidation)

	// ErrDisabled is returned when downloads are turned off or the external
	// tool is unavailable.
	ErrDisabled = errors.New("downloads unavailable")
)

// maxErrorLen bounds the error text persisted on a job.
const maxErrorLen = 1000

func truncateError(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	// Avoid splitting a multi-byte rune.
	cut := maxErrorLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
