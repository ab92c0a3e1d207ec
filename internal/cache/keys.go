package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	UserKeyPrefix        = "user:%d"
	PopularTagsKeyPrefix = "tags:popular:%d"
	PopularTagsPattern   = "tags:popular:*"
)

const (
	UserTTL        = 5 * time.Minute
	PopularTagsTTL = 2 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PopularTagsKey(limit int) string {
	return fmt.Sprintf(PopularTagsKeyPrefix, limit)
}

// Invalidate deletes key. Errors are ignored; the entry expires on its own TTL.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidatePopularTags drops every cached popular-tags page regardless of limit.
func InvalidatePopularTags(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, PopularTagsPattern, 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "popular tags invalidation failed", slog.String("error", err.Error()))
	}
}

// Aside reads key into dest. On a miss it calls fetch, which must populate dest,
// and stores the result with ttl. Cache failures never fail the read.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil || ttl <= 0 {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
	case !errors.Is(err, redis.Nil):
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	b, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, b, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
