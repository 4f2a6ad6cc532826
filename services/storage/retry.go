package storage

import (
	"context"
	"time"

	"sjsage522/cinemagoworker/logger"
)

const maxRetryBackoff = 30 * time.Second

// retryPolicy retries connection-level failures with a doubling backoff
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func newRetryPolicy(attempts int, backoff time.Duration) retryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return retryPolicy{attempts: attempts, backoff: backoff}
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.attempts || ctx.Err() != nil {
			break
		}

		logger.ForStorage().Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Storage unavailable, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxRetryBackoff {
			backoff *= 2
		}
	}
	return err
}
