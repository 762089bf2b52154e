// Package retrier repeats failing operations with capped exponential backoff.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxRetries      = 2
	defaultInitialInterval = 10 * time.Millisecond
	defaultMaxInterval     = 100 * time.Millisecond
	jitterFraction         = 0.1
)

// Retrier doubles the wait after every failed attempt, up to a cap.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	onRetry         func(attempt int, err error)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxRetries sets how many times a failed call is repeated.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithInitialInterval sets the wait before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

// WithMaxInterval caps the wait between retries.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

// WithOnRetry registers a hook called before each retry with the attempt number
// (starting at 1) and the error that caused it.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier tuned for short local writes.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		maxRetries:      defaultMaxRetries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, the retries run out or ctx is done.
// The last error from fn is returned when retries are exhausted.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= r.maxRetries; attempt++ {
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}

		timer := time.NewTimer(r.wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = fn(ctx)
	}
	return err
}

// DoWithData is Do for calls that also produce a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

// wait returns initial*2^(attempt-1) capped at maxInterval, with ±10% jitter.
func (r *Retrier) wait(attempt int) time.Duration {
	d := r.initialInterval
	for i := 1; i < attempt && d < r.maxInterval; i++ {
		d *= 2
	}
	d = min(d, r.maxInterval)

	jitter := (rand.Float64()*2 - 1) * jitterFraction * float64(d)
	return max(d+time.Duration(jitter), 0)
}
