package embed

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of transient embedding failures with randomized
// exponential backoff. It is a plain value so tests can shrink the delays and
// inject a clock instead of decorating the call site.
type RetryPolicy struct {
	MaxAttempts uint64 // total tries including the first
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Clock       backoff.Clock
}

// DefaultRetryPolicy mirrors the service defaults: up to 6 tries with
// backoff between 1s and 20s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		MinDelay:    time.Second,
		MaxDelay:    20 * time.Second,
	}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is exhausted, or ctx is done. Wrap validation failures in
// backoff.Permanent so they are never retried.
func (p RetryPolicy) Do(ctx context.Context, op backoff.Operation) error {
	bo := backoff.NewExponentialBackOff()
	if p.MinDelay > 0 {
		bo.InitialInterval = p.MinDelay
	}
	if p.MaxDelay > 0 {
		bo.MaxInterval = p.MaxDelay
	}
	bo.MaxElapsedTime = 0
	if p.Clock != nil {
		bo.Clock = p.Clock
	}
	bo.Reset()

	var policy backoff.BackOff = bo
	if p.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.Retry(op, backoff.WithContext(policy, ctx))
}
