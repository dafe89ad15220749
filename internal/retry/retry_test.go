package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type statusErr struct {
	code int
	msg  string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) StatusCode() int { return e.code }

type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(name string) slog.Handler       { return h }

func (h *captureHandler) countLevel(level slog.Level, msgSuffix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && strings.HasSuffix(r.Message, msgSuffix) {
			n++
		}
	}
	return n
}

func fastOptions(maxRetries int) Options {
	return Options{
		MaxRetries:      maxRetries,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2,
	}
}

func newTestExecutor(h *captureHandler) *Executor {
	e := NewExecutor(slog.New(h), nil)
	e.SetJitterFn(func() time.Duration { return 0 })
	return e
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(&captureHandler{})
	calls := 0
	got, err := Do(context.Background(), e, "op", fastOptions(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("result mismatch: got %q want %q", got, "ok")
	}
	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
}

func TestDoRetryCeiling(t *testing.T) {
	t.Parallel()

	h := &captureHandler{}
	e := newTestExecutor(h)
	calls := 0
	wantErr := &statusErr{code: 503, msg: "service unavailable"}
	_, err := Do(context.Background(), e, "op", fastOptions(3), func(ctx context.Context) (string, error) {
		calls++
		return "", wantErr
	})
	if err != wantErr {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 4 {
		t.Fatalf("calls mismatch: got %d want 4", calls)
	}
	if n := h.countLevel(slog.LevelError, "_retry_exhausted"); n != 1 {
		t.Fatalf("exhausted logs mismatch: got %d want 1", n)
	}
}

func TestDoNonRetryablePropagatesImmediately(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(&captureHandler{})
	calls := 0
	wantErr := &statusErr{code: 404, msg: "not found"}
	_, err := Do(context.Background(), e, "op", fastOptions(3), func(ctx context.Context) (string, error) {
		calls++
		return "", wantErr
	})
	if err != wantErr {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
}

func TestDoTransientFailuresThenSuccess(t *testing.T) {
	t.Parallel()

	h := &captureHandler{}
	e := newTestExecutor(h)
	calls := 0
	got, err := Do(context.Background(), e, "create_post", fastOptions(3), func(ctx context.Context) (int, error) {
		calls++
		if calls <= 2 {
			return 0, &statusErr{code: 503, msg: "service unavailable"}
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if got != 7 {
		t.Fatalf("result mismatch: got %d want 7", got)
	}
	if n := h.countLevel(slog.LevelWarn, "_retry_scheduled"); n != 2 {
		t.Fatalf("retry warnings mismatch: got %d want 2", n)
	}
}

func TestBackoffDelayMonotonicAndCapped(t *testing.T) {
	t.Parallel()

	opts := Options{
		MaxRetries:      10,
		BaseDelay:       time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2,
	}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := BackoffDelay(opts, attempt)
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: got %v prev %v", attempt, d, prev)
		}
		if d > opts.MaxDelay {
			t.Fatalf("delay exceeds cap at attempt %d: got %v cap %v", attempt, d, opts.MaxDelay)
		}
		prev = d
	}
	if got := BackoffDelay(opts, 1); got != time.Second {
		t.Fatalf("first delay mismatch: got %v want 1s", got)
	}
	if got := BackoffDelay(opts, 3); got != 4*time.Second {
		t.Fatalf("third delay mismatch: got %v want 4s", got)
	}
	if got := BackoffDelay(opts, 8); got != opts.MaxDelay {
		t.Fatalf("capped delay mismatch: got %v want %v", got, opts.MaxDelay)
	}
}

func TestRetryableClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		patterns []string
		want     bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "no status code", err: fmt.Errorf("dial tcp: connection refused"), want: true},
		{name: "status 429", err: &statusErr{code: 429, msg: "slow down"}, want: true},
		{name: "status 500", err: &statusErr{code: 500, msg: "boom"}, want: true},
		{name: "status 502", err: &statusErr{code: 502, msg: "bad gateway"}, want: true},
		{name: "status 503", err: &statusErr{code: 503, msg: "unavailable"}, want: true},
		{name: "status 504", err: &statusErr{code: 504, msg: "gateway timeout"}, want: true},
		{name: "status 404", err: &statusErr{code: 404, msg: "not found"}, want: false},
		{name: "status 400 rate limit phrase", err: &statusErr{code: 400, msg: "rate limit exceeded"}, want: true},
		{name: "status 400 timeout phrase", err: &statusErr{code: 400, msg: "request timed out"}, want: true},
		{name: "caller pattern match", err: &statusErr{code: 409, msg: "store is warming up"}, patterns: []string{"warming up"}, want: true},
		{name: "caller pattern no match", err: &statusErr{code: 409, msg: "conflict"}, patterns: []string{"warming up"}, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Retryable(tc.err, tc.patterns); got != tc.want {
				t.Fatalf("Retryable() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(&captureHandler{})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	opts := Options{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, ExponentialBase: 2}
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, e, "op", opts, func(ctx context.Context) (string, error) {
			calls++
			return "", &statusErr{code: 503, msg: "unavailable"}
		})
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Do() did not return after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls mismatch: got %d want 1", calls)
	}
}
