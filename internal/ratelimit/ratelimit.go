// Package ratelimit spaces out calls to external endpoints.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/spigell/jobradar/internal/utils"
	"golang.org/x/time/rate"
)

const (
	defaultJitterMin = 500 * time.Millisecond
	defaultJitterMax = 2 * time.Second
)

// Limiter enforces a minimum interval between calls sharing a key. A random
// jitter is added whenever a caller actually had to wait.
type Limiter struct {
	interval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now    func() time.Time
	wait   func(context.Context, time.Duration) error
	jitter func() time.Duration
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithJitter overrides the jitter range. Equal bounds give a fixed jitter.
func WithJitter(min, max time.Duration) Option {
	return func(l *Limiter) {
		l.jitter = uniform(min, max)
	}
}

// WithClock swaps the time source and the sleeping function.
func WithClock(now func() time.Time, wait func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.wait = wait
	}
}

// New allows callsPerMinute calls per key. Non-positive values disable limiting.
func New(callsPerMinute int, opts ...Option) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
		wait:     utils.WaitFor,
		jitter:   uniform(defaultJitterMin, defaultJitterMax),
	}
	if callsPerMinute > 0 {
		l.interval = time.Minute / time.Duration(callsPerMinute)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval is the minimum spacing between calls of one key.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next call for key is allowed.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	now := l.now()
	reservation := l.limiter(key).ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	if err := l.wait(ctx, delay+l.jitter()); err != nil {
		reservation.CancelAt(now)
		return err
	}
	// The next interval counts from when the call goes out, jitter included.
	l.rebase(key, l.now())
	return nil
}

// rebase replaces the limiter of key with one whose single token was spent at.
func (l *Limiter) rebase(key string, at time.Time) {
	lim := rate.NewLimiter(rate.Every(l.interval), 1)
	lim.AllowN(at, 1)

	l.mu.Lock()
	l.limiters[key] = lim
	l.mu.Unlock()
}

func (l *Limiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.interval), 1)
		l.limiters[key] = lim
	}
	return lim
}

func uniform(min, max time.Duration) func() time.Duration {
	if max <= min {
		return func() time.Duration { return min }
	}
	return func() time.Duration {
		return min + rand.N(max-min)
	}
}
