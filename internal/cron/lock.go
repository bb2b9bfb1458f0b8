package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazario-dev/bazario-backend/pkg/redis"
)

// RedisLock keeps concurrent worker replicas from running the same cycle.
// The owner token ensures only the holder can release.
type RedisLock struct {
	client *redis.Client
	name   string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client *redis.Client, name string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, fmt.Errorf("cron: redis client is required")
	}
	if name == "" {
		return nil, fmt.Errorf("cron: lock name is required")
	}
	return &RedisLock{
		client: client,
		name:   name,
		ttl:    ttl,
		owner:  uuid.NewString(),
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.owner, l.ttl, redis.KeyPartCronLock, l.name)
}

func (l *RedisLock) Release(ctx context.Context) error {
	current, err := l.client.Get(ctx, redis.KeyPartCronLock, l.name)
	if err == redis.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if current != l.owner {
		// Someone else holds it now (our TTL expired); leave it alone.
		return nil
	}
	return l.client.Del(ctx, redis.KeyPartCronLock, l.name)
}
