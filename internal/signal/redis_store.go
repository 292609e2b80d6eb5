package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis key prefixes for validator history
const (
	// fingerprintKeyPrefix namespaces fingerprint entries
	// Format: sigengine:fingerprint:{pair}:{type}:{conf}:{bucket}
	fingerprintKeyPrefix = "sigengine:fingerprint"

	// acceptedKeyPrefix namespaces per-pair acceptance timestamps
	// Format: sigengine:accepted:{pair}
	acceptedKeyPrefix = "sigengine:accepted"
)

// RedisStore is a HistoryStore backed by Redis, so cooldowns and duplicate
// suppression survive process restarts and are shared across instances.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore wraps an existing Redis client. Ping is the caller's concern.
func NewRedisStore(client *redis.Client, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		log:    log.With().Str("component", "redis_history").Logger(),
	}
}

func (r *RedisStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, fingerprintKeyPrefix+":"+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Record(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Set(ctx, fingerprintKeyPrefix+":"+key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set fingerprint: %w", err)
	}
	return nil
}

func (r *RedisStore) LastAccepted(ctx context.Context, pair string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, acceptedKeyPrefix+":"+pair).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get accepted: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// Unparseable entry, treat as absent and let it age out.
		r.log.Warn().Str("pair", pair).Str("value", val).Msg("dropping malformed acceptance timestamp")
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (r *RedisStore) MarkAccepted(ctx context.Context, pair string, at time.Time, ttl time.Duration) error {
	val := at.UTC().Format(time.RFC3339Nano)
	if err := r.client.Set(ctx, acceptedKeyPrefix+":"+pair, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set accepted: %w", err)
	}
	return nil
}

// Clear removes all validator keys via prefix scan.
func (r *RedisStore) Clear(ctx context.Context) error {
	for _, prefix := range []string{fingerprintKeyPrefix, acceptedKeyPrefix} {
		iter := r.client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("redis del %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan %s: %w", prefix, err)
		}
	}
	r.log.Info().Msg("validator history cleared")
	return nil
}
