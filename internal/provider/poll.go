package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	pollStatusFinished = "FINISHED"
	pollStatusError    = "ERROR"
)

// ErrPollTimeout marks an exhausted poll budget: the platform never reached
// a terminal state. Distinct from a processing error reported by the
// platform itself.
var ErrPollTimeout = errors.New("processing timeout")

// ProcessingError carries the platform-reported reason a container failed.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed: %s", e.Reason)
}

// pollContainerStatus polls a container's processing status with a bounded
// attempt count and fixed delay. fetch returns the current status plus an
// optional platform-reported reason. Transient fetch errors are tolerated;
// they consume an attempt. Returns nil on FINISHED, a *ProcessingError when
// the platform reports ERROR, ErrPollTimeout when attempts run out, or the
// context error on cancellation.
func pollContainerStatus(ctx context.Context, maxAttempts int, delay time.Duration, fetch func(context.Context) (status, reason string, err error)) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		status, reason, err := fetch(ctx)
		if err != nil {
			continue
		}

		switch status {
		case pollStatusFinished:
			return nil
		case pollStatusError:
			if reason == "" {
				reason = "unknown"
			}
			return &ProcessingError{Reason: reason}
		}
	}

	return ErrPollTimeout
}
