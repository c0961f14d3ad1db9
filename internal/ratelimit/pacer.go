package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces consecutive outbound requests to the price source.
// Each Wait returns no sooner than minInterval (plus up to jitter) after the previous one.
type Pacer struct {
	minInterval time.Duration
	jitter      time.Duration

	mu    sync.Mutex
	last  time.Time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer; a zero interval disables pacing
func NewPacer(minInterval, jitter time.Duration) *Pacer {
	return &Pacer{
		minInterval: minInterval,
		jitter:      jitter,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Wait blocks until the next request may start or ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.minInterval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		required := p.minInterval
		if p.jitter > 0 {
			required += time.Duration(rand.Int63n(int64(p.jitter)))
		}
		if elapsed := p.now().Sub(p.last); elapsed < required {
			if err := p.sleep(ctx, required-elapsed); err != nil {
				return err
			}
		}
	}

	p.last = p.now()
	return nil
}

// Reset forgets the previous request so the next Wait returns immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	p.last = time.Time{}
	p.mu.Unlock()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
