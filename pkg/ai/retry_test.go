package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type scriptedGrader struct {
	failures int
	calls    int
	response string
}

func (s *scriptedGrader) Grade(ctx context.Context, request GradeRequest) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", errors.New("upstream unavailable")
	}
	return s.response, nil
}

func immediatePolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     func(int) time.Duration { return 0 },
	}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	inner := &scriptedGrader{response: `{"questions": []}`}
	grader := WithRetry(inner, immediatePolicy(3), zerolog.Nop())

	raw, err := grader.Grade(context.Background(), GradeRequest{Prompt: "grade this"})
	require.NoError(t, err)
	require.Equal(t, `{"questions": []}`, raw)
	require.Equal(t, 1, inner.calls)
}

func TestWithRetryRecoversAfterFailures(t *testing.T) {
	inner := &scriptedGrader{failures: 2, response: "ok"}
	grader := WithRetry(inner, immediatePolicy(3), zerolog.Nop())

	raw, err := grader.Grade(context.Background(), GradeRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", raw)
	require.Equal(t, 3, inner.calls)
}

func TestWithRetryExhaustsBudget(t *testing.T) {
	inner := &scriptedGrader{failures: 10}
	grader := WithRetry(inner, immediatePolicy(3), zerolog.Nop())

	_, err := grader.Grade(context.Background(), GradeRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Equal(t, 3, inner.calls, "retries are sequential and bounded")
}

func TestWithRetryRespectsCancellation(t *testing.T) {
	inner := &scriptedGrader{failures: 10}
	policy := RetryPolicy{
		MaxAttempts: 5,
		Backoff:     func(int) time.Duration { return time.Hour },
	}
	grader := WithRetry(inner, policy, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := grader.Grade(ctx, GradeRequest{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, inner.calls)
}

func TestLinearBackoff(t *testing.T) {
	backoff := LinearBackoff(2 * time.Second)
	require.Equal(t, 2*time.Second, backoff(1))
	require.Equal(t, 4*time.Second, backoff(2))
	require.Equal(t, 6*time.Second, backoff(3))
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	require.Equal(t, 3, policy.MaxAttempts)
	require.Equal(t, 2*time.Second, policy.Backoff(1))
}

func TestDataURL(t *testing.T) {
	url := dataURL(Document{MIME: "image/png", Data: []byte{1, 2, 3}})
	require.Equal(t, "data:image/png;base64,AQID", url)

	url = dataURL(Document{Data: []byte("x")})
	require.Contains(t, url, "application/octet-stream")
}
