package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisPublisher struct {
	client redisSetter
	expiry time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
	// Zero means keys never expire
	Expiry time.Duration
}

func NewRedisPublisher(config RedisConfig) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.Timeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
	})
	return &RedisPublisher{client: client, expiry: config.Expiry}
}

func (r *RedisPublisher) Put(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, r.expiry).Err(); err != nil {
		return errors.Wrapf(err, "storing %q in redis", key)
	}
	return nil
}
