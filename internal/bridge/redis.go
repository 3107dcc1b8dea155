package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

type redisRegistry struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRegistry stores bindings as JSON under prefix+token so they survive
// a restart together with Redis-backed sessions.
func NewRedisRegistry(client redis.UniversalClient, prefix string) Registry {
	if prefix == "" {
		prefix = "bridge:"
	}
	return &redisRegistry{client: client, prefix: prefix}
}

func (r *redisRegistry) Bind(ctx context.Context, b Binding) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("bridge encode: %w", err)
	}
	token := newToken()
	if err := r.client.Set(ctx, r.prefix+token, raw, 0).Err(); err != nil {
		return "", fmt.Errorf("bridge bind: %w", err)
	}
	return token, nil
}

func (r *redisRegistry) Resolve(ctx context.Context, token string) (Binding, error) {
	raw, err := r.client.Get(ctx, r.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Binding{}, ErrUnknownToken
	}
	if err != nil {
		return Binding{}, fmt.Errorf("bridge resolve: %w", err)
	}
	var b Binding
	if err := json.Unmarshal(raw, &b); err != nil {
		return Binding{}, fmt.Errorf("bridge decode: %w", err)
	}
	return b, nil
}

func (r *redisRegistry) Release(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.prefix+token).Err(); err != nil {
		return fmt.Errorf("bridge release: %w", err)
	}
	return nil
}
