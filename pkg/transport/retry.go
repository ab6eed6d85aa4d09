package transport

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy decides how long to wait before reconnect attempt n (1-based)
// and when to give up. hint is a server supplied delay (Retry-After header or
// SSE "retry:" field), zero when absent.
type RetryPolicy interface {
	Next(attempt int, hint time.Duration) (time.Duration, bool)
	Reset()
}

// BackoffConfig configures a BackoffPolicy.
type BackoffConfig struct {
	// MaxAttempts is the number of reconnects allowed before giving up.
	// Zero means never give up.
	MaxAttempts int

	// InitialInterval is the first delay.
	InitialInterval time.Duration

	// MaxInterval caps the delay growth.
	MaxInterval time.Duration
}

// DefaultBackoffConfig returns the reconnect defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// BackoffPolicy is an exponential RetryPolicy with jitter.
type BackoffPolicy struct {
	mu  sync.Mutex
	cfg BackoffConfig
	b   *backoff.ExponentialBackOff
}

// NewBackoffPolicy returns a BackoffPolicy for cfg.
func NewBackoffPolicy(cfg BackoffConfig) *BackoffPolicy {
	defaults := DefaultBackoffConfig()
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	return &BackoffPolicy{cfg: cfg, b: b}
}

// Next returns the delay before the given attempt. A positive hint replaces
// the computed delay; the hint is still bounded by MaxAttempts.
func (p *BackoffPolicy) Next(attempt int, hint time.Duration) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.MaxAttempts > 0 && attempt > p.cfg.MaxAttempts {
		return 0, false
	}

	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	if hint > 0 {
		return hint, true
	}
	return d, true
}

// Reset restarts the delay sequence.
func (p *BackoffPolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.b.Reset()
}

// ConstantPolicy retries after a fixed delay, up to MaxAttempts times.
type ConstantPolicy struct {
	Delay       time.Duration
	MaxAttempts int
}

// Next implements RetryPolicy.
func (p ConstantPolicy) Next(attempt int, hint time.Duration) (time.Duration, bool) {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return 0, false
	}
	if hint > 0 {
		return hint, true
	}
	return p.Delay, true
}

// Reset implements RetryPolicy.
func (ConstantPolicy) Reset() {}

// NoRetry never reconnects.
type NoRetry struct{}

// Next implements RetryPolicy.
func (NoRetry) Next(int, time.Duration) (time.Duration, bool) { return 0, false }

// Reset implements RetryPolicy.
func (NoRetry) Reset() {}
