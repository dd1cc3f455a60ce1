package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDraftNotFound indicates no draft is stored under the given key.
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore keeps in-progress manual edits of an evaluation. It is injected
// state owned by the caller, not ambient global scope.
type DraftStore interface {
	Save(ctx context.Context, userID, key string, payload []byte) error
	Load(ctx context.Context, userID, key string) ([]byte, error)
	Delete(ctx context.Context, userID, key string) error
}

type redisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore builds a redis-backed draft store. Drafts expire after the
// given TTL; zero means 7 days.
func NewDraftStore(client *redis.Client, ttl time.Duration) DraftStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &redisDraftStore{client: client, ttl: ttl}
}

func draftKey(userID, key string) string {
	return fmt.Sprintf("draft:%s:%s", userID, key)
}

func (d *redisDraftStore) Save(ctx context.Context, userID, key string, payload []byte) error {
	if err := d.client.Set(ctx, draftKey(userID, key), payload, d.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (d *redisDraftStore) Load(ctx context.Context, userID, key string) ([]byte, error) {
	payload, err := d.client.Get(ctx, draftKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	return payload, nil
}

func (d *redisDraftStore) Delete(ctx context.Context, userID, key string) error {
	if err := d.client.Del(ctx, draftKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}
