// Package session tracks refresh-record liveness in Redis. One record per
// account; its existence, not its content, is the authority for whether a
// subject may silently re-authenticate.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned by Token when the account has no live refresh
// record.
var ErrNoSession = errors.New("no live session record")

// ErrRedisUnavailable marks connectivity failures against the backing store.
var ErrRedisUnavailable = errors.New("session redis unavailable")

// Registry is the Redis-backed session registry. Safe for concurrent use.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRegistry returns a Registry keyed under prefix + accountID. An empty
// prefix defaults to "RT:".
func NewRegistry(redisClient redis.UniversalClient, prefix string) *Registry {
	if prefix == "" {
		prefix = "RT:"
	}
	return &Registry{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (r *Registry) key(accountID string) string {
	return r.prefix + accountID
}

// Open unconditionally overwrites the refresh record for accountID with the
// given TTL. Each login replaces whatever session existed before; there is no
// multi-session tracking.
func (r *Registry) Open(ctx context.Context, accountID, refreshToken string, ttl time.Duration) error {
	if err := r.redis.Set(ctx, r.key(accountID), refreshToken, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsLive reports whether a refresh record exists for accountID. It never
// inspects the record's content.
func (r *Registry) IsLive(ctx context.Context, accountID string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Token returns the stored refresh token for accountID, or [ErrNoSession]
// when the record is absent or expired.
func (r *Registry) Token(ctx context.Context, accountID string) (string, error) {
	val, err := r.redis.Get(ctx, r.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val, nil
}

// Close deletes the refresh record. Closing an absent session is not an
// error; after Close, IsLive stays false until the next Open.
func (r *Registry) Close(ctx context.Context, accountID string) error {
	if err := r.redis.Del(ctx, r.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
