package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"EchoFM/logger"
)

const (
	searchTTL   = 10 * time.Minute
	metadataTTL = 6 * time.Hour
)

// SearchKey builds the cache key for a search request. Queries are
// case-folded so "Daft Punk" and "daft punk" share an entry.
func SearchKey(kind, query string, limit int) string {
	return fmt.Sprintf("search:%s:%s:%d", kind, strings.ToLower(strings.TrimSpace(query)), limit)
}

// SongInfoKey builds the cache key for track metadata.
func SongInfoKey(videoID string) string {
	return fmt.Sprintf("song:info:%s", videoID)
}

// GetCachedJSON loads a cached value into out. Returns false on a miss
// or any Redis failure; lookups never fail a request.
func GetCachedJSON(ctx context.Context, key string, out interface{}) bool {
	if RedisClient == nil {
		return false
	}

	data, err := RedisClient.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("cache lookup failed",
				logger.String("key", key),
				logger.ErrorField(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.Warn("cache entry is corrupt, dropping it",
			logger.String("key", key),
			logger.ErrorField(err))
		RedisClient.Del(ctx, key)
		return false
	}
	return true
}

// SetCachedJSON stores a value with a TTL. Failures are logged and
// swallowed.
func SetCachedJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if RedisClient == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("failed to encode cache entry",
			logger.String("key", key),
			logger.ErrorField(err))
		return
	}
	if err := RedisClient.Set(ctx, key, data, ttl).Err(); err != nil {
		logger.Warn("failed to store cache entry",
			logger.String("key", key),
			logger.ErrorField(err))
	}
}

// CacheSearchResult stores a search response.
func CacheSearchResult(ctx context.Context, key string, value interface{}) {
	SetCachedJSON(ctx, key, value, searchTTL)
}

// CacheSongInfo stores track metadata.
func CacheSongInfo(ctx context.Context, videoID string, value interface{}) {
	SetCachedJSON(ctx, SongInfoKey(videoID), value, metadataTTL)
}
