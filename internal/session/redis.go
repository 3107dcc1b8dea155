package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "session:"

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore persists sessions as JSON values under prefix+userID.
// Sessions never expire; only Clear removes them.
func NewRedisStore(client redis.UniversalClient, prefix string) Store {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &redisStore{client: client, prefix: prefix}
}

func (r *redisStore) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

func (r *redisStore) Get(ctx context.Context, userID int64) (*Session, bool, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session get %d: %w", userID, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, fmt.Errorf("session decode %d: %w", userID, err)
	}
	return &sess, true, nil
}

func (r *redisStore) Save(ctx context.Context, userID int64, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session encode %d: %w", userID, err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("session save %d: %w", userID, err)
	}
	return nil
}

func (r *redisStore) Clear(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session clear %d: %w", userID, err)
	}
	return nil
}
