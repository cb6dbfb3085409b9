package gateway

import (
	"context"
	"fmt"
	"time"
)

// backoff spaces out transaction status polls.
type backoff struct {
	currentTimeout time.Duration
	maximumTimeout time.Duration
}

func newBackoff(initialTimeout time.Duration, maximumTimeout time.Duration) (*backoff, error) {
	if initialTimeout <= 0 {
		return nil, fmt.Errorf("initial timeout %s must be positive", initialTimeout)
	}
	if maximumTimeout < initialTimeout {
		return nil, fmt.Errorf("maximum timeout %s below initial timeout %s", maximumTimeout, initialTimeout)
	}
	return &backoff{initialTimeout, maximumTimeout}, nil
}

// Wait waits for the current interval, then doubles it up to the maximum.
// It returns early with the context's error if ctx is done.
func (b *backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.currentTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	b.currentTimeout *= 2
	if b.currentTimeout > b.maximumTimeout {
		b.currentTimeout = b.maximumTimeout
	}
	return nil
}

// Timeout returns the backoff timeout.
func (b *backoff) Timeout() time.Duration {
	return b.currentTimeout
}
