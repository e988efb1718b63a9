// Package kv publishes values to a key-value store, for other systems
// to read (e.g., the versions a deployment made active).
package kv

import (
	"context"
	"path"
	"time"

	"github.com/go-kit/kit/log"
)

type Publisher interface {
	Put(ctx context.Context, key, value string) error
}

// PublisherFunc adapts a function to a Publisher.
type PublisherFunc func(ctx context.Context, key, value string) error

func (f PublisherFunc) Put(ctx context.Context, key, value string) error {
	return f(ctx, key, value)
}

// Prefixed puts every key under prefix.
func Prefixed(p Publisher, prefix string) Publisher {
	if prefix == "" {
		return p
	}
	return PublisherFunc(func(ctx context.Context, key, value string) error {
		return p.Put(ctx, path.Join(prefix, key), value)
	})
}

// Logging logs each put, and how it went.
func Logging(p Publisher, logger log.Logger) Publisher {
	return PublisherFunc(func(ctx context.Context, key, value string) (err error) {
		defer func(begin time.Time) {
			if err != nil {
				logger.Log("method", "Put", "key", key, "took", time.Since(begin), "err", err)
				return
			}
			logger.Log("method", "Put", "key", key, "value", value, "took", time.Since(begin))
		}(time.Now())
		return p.Put(ctx, key, value)
	})
}

// Multi puts to every publisher in turn, stopping at the first error.
type Multi []Publisher

func (m Multi) Put(ctx context.Context, key, value string) error {
	for _, p := range m {
		if err := p.Put(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
