// Package cache provides the process-local (or redis-backed) store used for
// short links and reconciliation attempt counters. Nothing in it is
// durable; losing the contents costs at worst a few redundant gateway
// checks or an expired short link.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}
