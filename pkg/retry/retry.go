package retry

import (
	"context"
	"time"

	"github.com/AhmedNaeem5575/insta-story/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// Config bounds one retryable operation. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig is tuned for page navigation: a handful of quick attempts,
// since a viewer that will not open in seconds will not open at all.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      1.5,
	}
}

// Do runs operation under exponential backoff, logging every failed attempt.
// A cancelled context stops retrying immediately instead of burning the
// remaining attempts.
func Do(ctx context.Context, log logger.Logger, operationName string, operation func() error, cfg Config) error {
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		MaxInterval:         cfg.MaxInterval,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		MaxElapsedTime:      backoff.DefaultMaxElapsedTime,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()

	wrapped := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return operation()
	}

	onRetry := func(err error, next time.Duration) {
		log.Warn("Operation failed, retrying",
			"operation", operationName,
			"error", err,
			"next_attempt_in", next.Round(time.Millisecond).String(),
		)
	}

	return backoff.RetryNotify(
		wrapped,
		backoff.WithContext(backoff.WithMaxRetries(bo, cfg.MaxRetries), ctx),
		onRetry,
	)
}
