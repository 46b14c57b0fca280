package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeSecretLua atomically performs GET → compare → DEL on a stored
// secret. A plain read-then-delete would let two concurrent redemptions both
// observe a match before either deletes; running the sequence as one script
// closes that replay window.
//
// KEYS[1] = record key
// ARGV[1] = presented secret
//
// Returns 1 on match+delete, or an error string: "not_found", "mismatch".
// On mismatch the record is left in place so correct retries remain possible
// until TTL.
var consumeSecretLua = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
  return {err='not_found'}
end
if stored ~= ARGV[1] then
  return {err='mismatch'}
end
redis.call('DEL', KEYS[1])
return 1
`)

var (
	errSecretNotFound = errors.New("stored secret not found")
	errSecretMismatch = errors.New("stored secret mismatch")
)

// secretStore is a single-use TTL-bound secret keyed by email. Both the
// one-time code and the verification token are instances of it, differing
// only in key prefix and lifetime.
type secretStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newSecretStore(redisClient redis.UniversalClient, prefix string) *secretStore {
	return &secretStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *secretStore) key(email string) string {
	return s.prefix + email
}

// Save overwrites any prior secret for email. The delete-then-set pair runs
// pipelined so a concurrent reader never observes the old value with the new
// TTL.
func (s *secretStore) Save(ctx context.Context, email, secret string, ttl time.Duration) error {
	key := s.key(email)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Set(ctx, key, secret, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Consume deletes and returns success iff the stored secret matches
// presented. Absence and mismatch come back as distinct sentinels for the
// engine to map onto the caller-facing taxonomy.
func (s *secretStore) Consume(ctx context.Context, email, presented string) error {
	err := consumeSecretLua.Run(ctx, s.redis, []string{s.key(email)}, presented).Err()
	if err == nil {
		return nil
	}
	switch err.Error() {
	case "not_found":
		return errSecretNotFound
	case "mismatch":
		return errSecretMismatch
	default:
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
}
