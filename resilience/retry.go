package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Zero or one means no retries.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	// BackoffFactor multiplies the delay after every failed attempt.
	BackoffFactor float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	// Jitter spreads each delay by up to this fraction, in [0, 1].
	Jitter float64 `yaml:"jitter" mapstructure:"jitter"`
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, backoff time.Duration) `yaml:"-" mapstructure:"-"`
}

// DefaultRetryConfig returns three attempts with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
	}
}

// ApplyDefaults fills in zero-valued backoff fields. MaxAttempts is kept
// as given so that zero keeps meaning a single attempt.
func (c *RetryConfig) ApplyDefaults() {
	d := DefaultRetryConfig()
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = d.BackoffFactor
	}
}

// Backoff returns the delay after the given failed attempt, before jitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	c.ApplyDefaults()
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d)
}

func (c RetryConfig) jittered(attempt int) time.Duration {
	d := c.Backoff(attempt)
	if c.Jitter <= 0 {
		return d
	}
	spread := float64(d) * min(c.Jitter, 1)
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Retry returns the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry runs fn until it succeeds or gives up, and returns the last error.
// Context errors are never retried.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || attempt >= attempts {
			return err
		}

		backoff := cfg.jittered(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
