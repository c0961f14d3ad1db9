package ratelimit

import (
	"sync"
	"time"
)

// window is one sliding-window limit
type window struct {
	span  time.Duration
	limit int
	hits  []time.Time
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept
}

func (w *window) full() bool {
	return w.limit > 0 && len(w.hits) >= w.limit
}

func (w *window) remaining() int {
	if w.limit <= 0 {
		return -1
	}
	if r := w.limit - len(w.hits); r > 0 {
		return r
	}
	return 0
}

// RateLimiter guards administrative endpoints that start expensive work,
// such as a manual ingestion run. A limit of zero disables that window.
type RateLimiter struct {
	enabled bool
	minute  window
	hour    window
	day     window
	now     func() time.Time
	mu      sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits
func NewRateLimiter(requestsPerMinute, requestsPerHour, requestsPerDay int, enabled bool) *RateLimiter {
	return &RateLimiter{
		enabled: enabled,
		minute:  window{span: time.Minute, limit: requestsPerMinute},
		hour:    window{span: time.Hour, limit: requestsPerHour},
		day:     window{span: 24 * time.Hour, limit: requestsPerDay},
		now:     time.Now,
	}
}

// AllowRequest records the request and returns true, or returns false when any window is full
func (rl *RateLimiter) AllowRequest() bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windows := []*window{&rl.minute, &rl.hour, &rl.day}
	for _, w := range windows {
		w.prune(now)
		if w.full() {
			return false
		}
	}
	for _, w := range windows {
		w.hits = append(w.hits, now)
	}
	return true
}

// Stats contains rate limiter statistics. Remaining is -1 for an unlimited window.
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	RequestsLastDay     int  `json:"requests_last_day"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
	RemainingThisDay    int  `json:"remaining_this_day"`
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.minute.prune(now)
	rl.hour.prune(now)
	rl.day.prune(now)

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(rl.minute.hits),
		RequestsLastHour:    len(rl.hour.hits),
		RequestsLastDay:     len(rl.day.hits),
		RemainingThisMinute: rl.minute.remaining(),
		RemainingThisHour:   rl.hour.remaining(),
		RemainingThisDay:    rl.day.remaining(),
	}
}

// Reset clears all tracked requests
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.minute.hits = nil
	rl.hour.hits = nil
	rl.day.hits = nil
}
