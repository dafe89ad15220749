// Package ratelimit provides a fixed-window request limiter shared by every
// outbound API call. The upstream server enforces one rate limit per
// credential, so a single Limiter instance is constructed at startup and
// injected into every caller; tests construct their own isolated instances.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultWindow = time.Second

type Limiter struct {
	limit  int
	window time.Duration
	nowFn  func() time.Time

	mu          sync.Mutex
	count       int
	windowStart time.Time
}

func New(requestsPerWindow int) (*Limiter, error) {
	return NewWithWindow(requestsPerWindow, defaultWindow, nil)
}

func NewWithWindow(requestsPerWindow int, window time.Duration, nowFn func() time.Time) (*Limiter, error) {
	if requestsPerWindow <= 0 {
		return nil, fmt.Errorf("requests_per_window must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Limiter{
		limit:  requestsPerWindow,
		window: window,
		nowFn:  nowFn,
	}, nil
}

// Acquire blocks until issuing one more request would not exceed the window
// ceiling, then reserves a slot. It fails only when ctx is canceled.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return fmt.Errorf("rate limiter is not initialized")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait, ok := l.tryReserve()
		if ok {
			return nil
		}
		// Window exhausted: sleep until the boundary, then re-admit.
		if err := sleepWithContext(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) tryReserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count < l.limit {
		l.count++
		return 0, true
	}
	return l.window - now.Sub(l.windowStart), false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
