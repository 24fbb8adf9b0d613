// Package dedup remembers which inquiries have already been announced in
// Slack, so a message picked up twice is stored again but not re-notified.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long an announced context id is remembered
	DefaultTTL = 24 * time.Hour

	keyPrefix = "mailreply:notified:"
)

// Cmdable is the subset of Redis commands the filter needs
type Cmdable interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Cmdable = (*redis.Client)(nil)

// Filter tracks which context ids have already been announced
type Filter struct {
	rdb Cmdable
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis
func NewFilter(rdb Cmdable) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// NewFilterFromURL connects to the Redis instance at redisURL
func NewFilterFromURL(redisURL string) (*Filter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFilter(redis.NewClient(opt)), nil
}

// IsNew reports whether contextID has not been announced yet, marking it
// announced atomically when it has not.
func (f *Filter) IsNew(ctx context.Context, contextID string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, keyPrefix+contextID, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}

// Release forgets contextID so the next delivery announces it again. Callers
// use it when the announcement that IsNew cleared the way for did not happen.
func (f *Filter) Release(ctx context.Context, contextID string) error {
	if err := f.rdb.Del(ctx, keyPrefix+contextID).Err(); err != nil {
		return fmt.Errorf("dedup DEL: %w", err)
	}
	return nil
}
