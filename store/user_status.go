package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// userStatusKeyPrefix namespaces presence keys. One key per user:
// presence:user:{user_id} -> "online" | "offline".
const userStatusKeyPrefix = "presence:user:"

// onlineStatusTTL bounds how long an "online" record can outlive its writer.
// A crashed server cannot mark anyone offline, so online keys expire on their
// own and readers fall back to offline.
const onlineStatusTTL = 5 * time.Minute

// UserStatusStore persists the hub's derived online/offline status in Redis
// so other processes (the REST layer, other hub instances) can read it. It
// implements hub.UserStore.
type UserStatusStore struct {
	db *RedisDB
}

// NewUserStatusStore creates a status store over an existing Redis connection.
func NewUserStatusStore(db *RedisDB) *UserStatusStore {
	return &UserStatusStore{db: db}
}

// SetOnlineStatus records a presence transition. Online records carry a TTL
// and are refreshed by RefreshOnlineStatus; offline records persist without
// one.
func (s *UserStatusStore) SetOnlineStatus(ctx context.Context, userID string, online bool) error {
	key := userStatusKeyPrefix + userID

	var err error
	if online {
		err = s.db.client.Set(ctx, key, "online", onlineStatusTTL).Err()
	} else {
		err = s.db.client.Set(ctx, key, "offline", 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to persist status for user %s: %w", userID, err)
	}
	return nil
}

// RefreshOnlineStatus extends the liveness TTL for a user known to still hold
// connections. Intended to be called periodically for all connected users.
func (s *UserStatusStore) RefreshOnlineStatus(ctx context.Context, userID string) error {
	key := userStatusKeyPrefix + userID
	if err := s.db.client.Expire(ctx, key, onlineStatusTTL).Err(); err != nil {
		return fmt.Errorf("failed to refresh status for user %s: %w", userID, err)
	}
	return nil
}

// IsOnline reads a user's persisted status. A missing or expired key reads as
// offline.
func (s *UserStatusStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	val, err := s.db.client.Get(ctx, userStatusKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read status for user %s: %w", userID, err)
	}
	return val == "online", nil
}
