package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(0); err == nil {
		t.Fatalf("New(0) error = nil, want error")
	}
	if _, err := NewWithWindow(5, 0, nil); err == nil {
		t.Fatalf("NewWithWindow(5, 0) error = nil, want error")
	}
}

func TestAcquireWithinWindowDoesNotBlock(t *testing.T) {
	t.Parallel()

	l, err := New(3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("elapsed mismatch: got %v want < 200ms", elapsed)
	}
}

func TestAcquireBlocksUntilWindowBoundary(t *testing.T) {
	t.Parallel()

	const window = 80 * time.Millisecond
	l, err := NewWithWindow(2, window, nil)
	if err != nil {
		t.Fatalf("NewWithWindow() error = %v", err)
	}
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	// 5 acquires at 2 per window need at least 2 full window waits.
	if elapsed := time.Since(start); elapsed < 2*window {
		t.Fatalf("elapsed mismatch: got %v want >= %v", elapsed, 2*window)
	}
}

func TestAcquireNeverExceedsCeilingConcurrently(t *testing.T) {
	t.Parallel()

	const (
		limit  = 4
		window = 60 * time.Millisecond
	)
	l, err := NewWithWindow(limit, window, nil)
	if err != nil {
		t.Fatalf("NewWithWindow() error = %v", err)
	}

	var (
		mu     sync.Mutex
		grants int
	)
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3*limit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			grants++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if grants != 3*limit {
		t.Fatalf("grant count mismatch: got %d want %d", grants, 3*limit)
	}
	// 3*limit grants at limit per window require waiting out two boundaries.
	if elapsed := time.Since(start); elapsed < 2*window {
		t.Fatalf("elapsed mismatch: got %v want >= %v", elapsed, 2*window)
	}
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	t.Parallel()

	l, err := NewWithWindow(1, 10*time.Second, nil)
	if err != nil {
		t.Fatalf("NewWithWindow() error = %v", err)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}
