package pipeline

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dgallion1/guideseg/internal/store"
)

const MaxRetries = 3

// IsRetryable checks if a persistence error is worth retrying.
func IsRetryable(err error) bool {
	return store.IsTransient(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

// withRetry runs op until it succeeds, fails permanently or exhausts
// MaxRetries.
func withRetry(ctx context.Context, log *slog.Logger, what string, op func() error) error {
	var err error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if err = op(); err == nil || !IsRetryable(err) {
			return err
		}
		log.Warn("retryable store error", "op", what, "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
