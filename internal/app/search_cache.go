package app

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SearchCache stores serialized search results under a key derived from the query.
type SearchCache interface {
	Key(params map[string]string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// RedisSearchCache is a SearchCache backed by Redis with a fixed TTL.
type RedisSearchCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSearchCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSearchCache {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "carconnect"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSearchCache{client: client, prefix: prefix + ":search", ttl: ttl}
}

// Key hashes the sorted query parameters so equivalent queries share an entry.
func (c *RedisSearchCache) Key(params map[string]string) string {
	return queryCacheKey(c.prefix, params)
}

func (c *RedisSearchCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(data), dest)
}

func (c *RedisSearchCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func queryCacheKey(prefix string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for i, k := range keys {
		if i > 0 {
			builder.WriteString(":")
		}
		builder.WriteString(k)
		builder.WriteString("=")
		builder.WriteString(params[k])
	}

	hash := md5.Sum([]byte(builder.String()))
	return prefix + ":" + hex.EncodeToString(hash[:])
}
