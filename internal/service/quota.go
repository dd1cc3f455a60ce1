package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrQuotaExceeded indicates the caller used up their daily evaluation budget.
var ErrQuotaExceeded = errors.New("daily evaluation quota exceeded")

// QuotaService enforces per-user evaluation counts. The pipeline itself
// assumes it is only invoked after a successful quota check.
type QuotaService interface {
	Consume(ctx context.Context, userID string) error
	Refund(ctx context.Context, userID string) error
	Remaining(ctx context.Context, userID string) (int, error)
}

type redisQuota struct {
	client *redis.Client
	limit  int
	now    func() time.Time
	logger zerolog.Logger
}

// NewQuotaService builds a redis-backed daily quota counter.
func NewQuotaService(client *redis.Client, dailyLimit int, logger zerolog.Logger) QuotaService {
	if dailyLimit <= 0 {
		dailyLimit = 50
	}

	return &redisQuota{
		client: client,
		limit:  dailyLimit,
		now:    time.Now,
		logger: logger.With().Str("component", "quota_service").Logger(),
	}
}

func (q *redisQuota) key(userID string) string {
	return fmt.Sprintf("quota:%s:%s", userID, q.now().UTC().Format("2006-01-02"))
}

// Consume increments the user's counter for today and fails once the limit
// is crossed. The day key expires on its own; 48h covers timezone skew.
func (q *redisQuota) Consume(ctx context.Context, userID string) error {
	key := q.key(userID)

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("quota incr: %w", err)
	}
	if count == 1 {
		if err := q.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			q.logger.Warn().Err(err).Str("key", key).Msg("failed to set quota expiry")
		}
	}

	if count > int64(q.limit) {
		return ErrQuotaExceeded
	}

	return nil
}

// Refund hands back a unit taken by Consume when the request was thrown out
// before any grading happened. Only meaningful after a successful Consume, so
// the counter never goes below zero in practice.
func (q *redisQuota) Refund(ctx context.Context, userID string) error {
	if err := q.client.Decr(ctx, q.key(userID)).Err(); err != nil {
		return fmt.Errorf("quota decr: %w", err)
	}
	return nil
}

func (q *redisQuota) Remaining(ctx context.Context, userID string) (int, error) {
	count, err := q.client.Get(ctx, q.key(userID)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("quota get: %w", err)
	}

	remaining := q.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}
