// Package ratelimit bounds outbound calls to the scraping capability to a
// fixed number of requests per trailing window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the trailing window the external API meters against.
const DefaultWindow = time.Minute

// Limiter admits at most max calls within any trailing window. All workers
// of a run share one instance; it is the sole serialization point for
// outbound calls.
type Limiter struct {
	max    int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time

	now func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithWindow overrides the trailing window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// NewLimiter builds a limiter admitting max calls per trailing window.
func NewLimiter(max int, opts ...Option) (*Limiter, error) {
	if max <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", max)
	}
	l := &Limiter{
		max:    max,
		window: DefaultWindow,
		stamps: make([]time.Time, 0, max),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Acquire blocks until issuing one more call stays within the limit, then
// records the call timestamp and returns. It returns early with the
// context's error if ctx is cancelled while waiting. Wake order is
// FIFO-ish; no fairness guarantee under sustained contention.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.max {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status reports remaining slots and the time until the next slot frees.
// It is observability only; callers must gate work through Acquire.
func (l *Limiter) Status() (remaining int, reset time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	remaining = l.max - len(l.stamps)
	if remaining < l.max && len(l.stamps) > 0 {
		reset = l.window - now.Sub(l.stamps[0])
		if reset < 0 {
			reset = 0
		}
	}
	return remaining, reset
}

// prune drops timestamps that aged out of the trailing window. Caller must
// hold l.mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
