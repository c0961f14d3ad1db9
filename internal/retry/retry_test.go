package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTimer fires immediately and remembers what it was asked to wait
type recordingTimer struct {
	c      chan time.Time
	delays []time.Duration
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d.Round(time.Millisecond))
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	return t.c
}

func TestWithRetryExhaustsWithDoublingDelays(t *testing.T) {
	timer := newRecordingTimer()
	p := DefaultPolicy()
	p.Timer = timer

	boom := errors.New("boom")
	calls := 0
	_, err := WithRetry(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, boom
	}, p)

	require.Error(t, err)
	var ex *ExhaustedRetries
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
}

func TestWithRetryCapsDelay(t *testing.T) {
	timer := newRecordingTimer()
	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second, Timer: timer}

	_, err := WithRetry(context.Background(), func(context.Context) (struct{}, error) {
		return struct{}{}, errors.New("down")
	}, p)

	require.Error(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, timer.delays)
}

func TestWithRetryReturnsFirstSuccess(t *testing.T) {
	timer := newRecordingTimer()
	p := DefaultPolicy()
	p.Timer = timer

	var retried []int
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	}

	calls := 0
	v, err := WithRetry(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	}, p)

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int{1}, retried)
	assert.Equal(t, []time.Duration{time.Second}, timer.delays)
}

func TestWithRetrySingleAttempt(t *testing.T) {
	timer := newRecordingTimer()
	_, err := WithRetry(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("nope")
	}, Policy{MaxAttempts: 1, Timer: timer})

	var ex *ExhaustedRetries
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, ex.Attempts)
	assert.Empty(t, timer.delays)
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := WithRetry(ctx, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fails then cancels")
	}, Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour})

	var ex *ExhaustedRetries
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ex.Attempts)
}
