package analysis

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the number of attempts and the wait between them
type RetryPolicy struct {
	// MaxRetries is the number of attempts allowed after the first
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Jitter randomizes each delay by up to this fraction; zero keeps delays exact
	Jitter float64
}

// DefaultRetryPolicy returns two retries with exponential backoff from 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
	}
}

// normalized clamps out-of-range fields
func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0
	}
	return p
}

// newBackOff returns a fresh delay sequence for one run
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	p = p.normalized()
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// Backoff returns the delay before retry number attempt+1 (attempt is zero-based).
// With Jitter zero the sequence is InitialBackoff * Multiplier^attempt capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	b := p.newBackOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext is the default SleepFunc
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
