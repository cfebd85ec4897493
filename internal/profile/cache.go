// Package profile resolves display identities for attendees and chat senders, fronting the
// profile table with a Redis cache.
package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaelmorch/platform-sports/internal/domain"
)

const keyPrefix = "profile:"

// Store is the authoritative profile source.
type Store interface {
	domain.ProfileDirectory
	Upsert(ctx context.Context, profile domain.Profile) error
}

type redisAPI interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedDirectory answers lookups from Redis and falls back to the store for misses. Redis
// failures degrade to store reads.
type CachedDirectory struct {
	client redisAPI
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedDirectory constructs a CachedDirectory.
func NewCachedDirectory(client redisAPI, store Store, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{client: client, store: store, ttl: ttl, logger: logger}
}

type cachedProfile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Lookup resolves every id with one MGET and at most one store query.
func (d *CachedDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = keyPrefix + id
	}

	misses := userIDs
	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.logger.Warn("profile cache read failed", "error", err)
	} else {
		misses = make([]string, 0, len(userIDs))
		for i, value := range values {
			if p, ok := decode(value); ok {
				out[userIDs[i]] = p
				continue
			}
			misses = append(misses, userIDs[i])
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := d.store.Lookup(ctx, misses)
	if err != nil {
		return nil, err
	}
	for id, p := range loaded {
		out[id] = p
		d.remember(ctx, p)
	}
	return out, nil
}

// Upsert writes through to the store and evicts the cached copy.
func (d *CachedDirectory) Upsert(ctx context.Context, p domain.Profile) error {
	if err := d.store.Upsert(ctx, p); err != nil {
		return err
	}
	if err := d.client.Del(ctx, keyPrefix+p.UserID).Err(); err != nil {
		d.logger.Warn("profile cache eviction failed", "user_id", p.UserID, "error", err)
	}
	return nil
}

func (d *CachedDirectory) remember(ctx context.Context, p domain.Profile) {
	payload, err := json.Marshal(cachedProfile{UserID: p.UserID, DisplayName: p.DisplayName, Email: p.Email})
	if err != nil {
		return
	}
	if err := d.client.Set(ctx, keyPrefix+p.UserID, payload, d.ttl).Err(); err != nil {
		d.logger.Warn("profile cache write failed", "user_id", p.UserID, "error", err)
	}
}

func decode(value interface{}) (domain.Profile, bool) {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return domain.Profile{}, false
	}
	var cached cachedProfile
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return domain.Profile{}, false
	}
	return domain.Profile{UserID: cached.UserID, DisplayName: cached.DisplayName, Email: cached.Email}, true
}
