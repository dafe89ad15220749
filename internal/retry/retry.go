// Package retry wraps fallible operations with retryable-error classification
// and exponential backoff. Every attempt passes through the shared rate
// limiter first, so retried calls cannot stampede the upstream server.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/quailyquaily/mattermorph/internal/ratelimit"
)

const maxJitter = time.Second

type Options struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	ExponentialBase   float64
	RetryablePatterns []string
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxRetries < 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.ExponentialBase <= 1 {
		o.ExponentialBase = def.ExponentialBase
	}
	return o
}

type Executor struct {
	logger   *slog.Logger
	limiter  *ratelimit.Limiter
	jitterFn func() time.Duration
}

func NewExecutor(logger *slog.Logger, limiter *ratelimit.Limiter) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		logger:  logger,
		limiter: limiter,
		jitterFn: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}
}

// SetJitterFn overrides the random jitter source. Tests use it to make
// computed delays deterministic.
func (e *Executor) SetJitterFn(fn func() time.Duration) {
	if fn != nil {
		e.jitterFn = fn
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or exhausts
// opts.MaxRetries additional attempts. The last error is returned as-is.
func Do[T any](ctx context.Context, e *Executor, name string, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if e == nil {
		e = NewExecutor(nil, nil)
	}
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries+1; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Acquire(ctx); err != nil {
				return zero, err
			}
		}
		out, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.Info(name+"_retry_ok", "attempts", attempt)
			}
			return out, nil
		}
		lastErr = err
		if !Retryable(err, opts.RetryablePatterns) {
			return zero, err
		}
		if attempt > opts.MaxRetries {
			break
		}
		delay := BackoffDelay(opts, attempt) + e.jitterFn()
		e.logger.Warn(name+"_retry_scheduled", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		if err := sleepWithContext(ctx, delay); err != nil {
			return zero, err
		}
	}
	e.logger.Error(name+"_retry_exhausted", "attempts", opts.MaxRetries+1, "error", lastErr.Error())
	return zero, lastErr
}

// BackoffDelay computes the base delay for the given attempt, before jitter:
// min(BaseDelay * ExponentialBase^(attempt-1), MaxDelay).
func BackoffDelay(opts Options, attempt int) time.Duration {
	opts = opts.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(opts.BaseDelay) * math.Pow(opts.ExponentialBase, float64(attempt-1)))
	if d > opts.MaxDelay || d <= 0 {
		return opts.MaxDelay
	}
	return d
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

var rateLimitPhrases = []string{
	"rate limit",
	"rate limited",
	"too many requests",
}

var networkPhrases = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"temporarily unavailable",
	"no such host",
	"unexpected eof",
}

// Retryable reports whether err is worth another attempt. Errors without an
// upstream status are treated as network-level failures and retried; errors
// with a status retry only on the recognized transient statuses or when the
// message matches a rate-limit, network, or caller-supplied phrase.
func Retryable(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	var sc StatusCoder
	if errors.As(err, &sc) && sc.StatusCode() > 0 {
		if retryableStatuses[sc.StatusCode()] {
			return true
		}
	} else {
		return true
	}
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	for _, phrase := range networkPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern != "" && strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
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
