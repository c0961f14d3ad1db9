package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMinuteWindow(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 0, 0, true)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.AllowRequest())
	assert.True(t, rl.AllowRequest())
	assert.False(t, rl.AllowRequest())

	now = now.Add(61 * time.Second)
	assert.True(t, rl.AllowRequest())

	stats := rl.GetStats()
	assert.Equal(t, 1, stats.RequestsLastMinute)
	assert.Equal(t, 3, stats.RequestsLastHour)
	assert.Equal(t, 1, stats.RemainingThisMinute)
	assert.Equal(t, -1, stats.RemainingThisHour)
}

func TestRateLimiterHourWindowBlocksAcrossMinutes(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 2, 0, true)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.AllowRequest())
	now = now.Add(10 * time.Minute)
	assert.True(t, rl.AllowRequest())
	now = now.Add(10 * time.Minute)
	assert.False(t, rl.AllowRequest())

	rl.Reset()
	assert.True(t, rl.AllowRequest())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(1, 1, 1, false)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.AllowRequest())
	}
	assert.False(t, rl.GetStats().Enabled)
}

func TestPacerSpacesCalls(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	var slept []time.Duration

	p := NewPacer(2*time.Second, 0)
	p.now = func() time.Time { return now }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))
	now = now.Add(500 * time.Millisecond)
	require.NoError(t, p.Wait(ctx))
	now = now.Add(3 * time.Second)
	require.NoError(t, p.Wait(ctx))

	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, slept)
}

func TestPacerHonoursContext(t *testing.T) {
	p := NewPacer(time.Hour, 0)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacerZeroIntervalNeverSleeps(t *testing.T) {
	p := NewPacer(0, 0)
	p.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected sleep")
		return nil
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
}
