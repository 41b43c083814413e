package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 500*time.Millisecond, p.Backoff(0))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 8*time.Second, p.Backoff(10))
}

func TestRetryPolicy_Jitter(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Minute, Multiplier: 2, Jitter: 0.5}

	for i := 0; i < 20; i++ {
		d := p.Backoff(0)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1, InitialBackoff: -time.Second, MaxBackoff: -time.Second, Multiplier: 0.5, Jitter: 3}.normalized()

	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, time.Duration(0), p.InitialBackoff)
	assert.Equal(t, time.Duration(0), p.MaxBackoff)
	assert.Equal(t, 1.0, p.Multiplier)
	assert.Equal(t, 0.0, p.Jitter)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	assert.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateInvoking:   "invoking",
		StateValidating: "validating",
		StateRetryWait:  "retry_wait",
		StateSuccess:    "success",
		StateFailed:     "failed",
		State(99):       "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
		text, err := state.MarshalText()
		assert.NoError(t, err)
		assert.Equal(t, want, string(text))
	}

	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRetryWait.Terminal())
}
