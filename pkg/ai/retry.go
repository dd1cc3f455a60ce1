package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var gradeRetries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "markwise",
	Subsystem: "ai",
	Name:      "grading_retries_total",
	Help:      "Number of grading attempts retried after a failure",
})

// RetryPolicy describes how many times a grading call is attempted and how
// long to wait between attempts. It is orthogonal to the grader itself.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearBackoff waits base x attempt between retries.
func LinearBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// DefaultRetryPolicy is 3 total attempts with 2s x attempt backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(2 * time.Second),
	}
}

type retryingGrader struct {
	next   Grader
	policy RetryPolicy
	logger zerolog.Logger
}

// WithRetry wraps a grader with sequential retries. Every failure is retried
// identically; retries stop early when the context is cancelled.
func WithRetry(next Grader, policy RetryPolicy, logger zerolog.Logger) Grader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = LinearBackoff(2 * time.Second)
	}

	return &retryingGrader{
		next:   next,
		policy: policy,
		logger: logger.With().Str("component", "ai_retry").Logger(),
	}
}

func (r *retryingGrader) Grade(ctx context.Context, request GradeRequest) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		raw, err := r.next.Grade(ctx, request)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.Backoff(attempt)
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("grading attempt failed, retrying")
		gradeRetries.Inc()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}

	return "", fmt.Errorf("grading failed after %d attempts: %w", r.policy.MaxAttempts, lastErr)
}
