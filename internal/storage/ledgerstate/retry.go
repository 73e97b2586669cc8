package ledgerstate

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoff retries file operations that fail for transient reasons, such as
// another process holding the state file open.
type backoff struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	// jitter is the +/- fraction applied to each pause.
	jitter  float64
	retryIf func(error) bool
}

func defaultBackoff() backoff {
	return backoff{
		attempts: 3,
		initial:  25 * time.Millisecond,
		max:      200 * time.Millisecond,
		jitter:   0.1,
		retryIf:  isTransient,
	}
}

// do runs fn up to b.attempts times, doubling the pause after each failure.
// The last error is returned.
func (b backoff) do(ctx context.Context, fn func() error) error {
	pause := b.initial
	var err error

	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= b.attempts || (b.retryIf != nil && !b.retryIf(err)) {
			return err
		}

		wait := time.Duration(float64(pause) * (1 + (rand.Float64()*2-1)*b.jitter))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(max(wait, 0)):
		}

		pause = min(pause*2, b.max)
	}
}
