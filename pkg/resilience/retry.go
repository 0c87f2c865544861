package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig shapes exponential backoff. Zero fields take defaults.
// Retryable, when set, ends the loop on errors it reports as permanent.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Retryable      func(error) bool
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = 2
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = 0.1
	}
	return cfg
}

// delay is the pause after the given failed attempt, counting from 1.
func (cfg RetryConfig) delay(attempt int) time.Duration {
	d := float64(cfg.InitialDelay)
	for i := 1; i < attempt && d < float64(cfg.MaxDelay); i++ {
		d *= cfg.Multiplier
	}
	d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	return time.Duration(min(max(d, float64(cfg.InitialDelay)), float64(cfg.MaxDelay)))
}

// Retry calls fn until it succeeds, the attempts run out, ctx ends, or
// Retryable rejects the error.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
		}

		wait := cfg.delay(attempt)
		log.Warn("attempt failed, backing off", "attempt", attempt, "max_attempts", cfg.MaxAttempts, "wait", wait, "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s aborted after %d attempts: %w", name, attempt, ctx.Err())
		}
	}
}
