package app

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestQueryCacheKeyIsOrderIndependent(t *testing.T) {
	a := queryCacheKey("carconnect:search", map[string]string{"city": "austin", "limit": "20", "offset": "0"})
	b := queryCacheKey("carconnect:search", map[string]string{"offset": "0", "city": "austin", "limit": "20"})
	if a != b {
		t.Fatalf("expected identical keys, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "carconnect:search:") {
		t.Fatalf("expected prefixed key, got %s", a)
	}

	c := queryCacheKey("carconnect:search", map[string]string{"city": "dallas", "limit": "20", "offset": "0"})
	if a == c {
		t.Fatal("expected different queries to produce different keys")
	}
}

func TestNewRedisSearchCacheDefaults(t *testing.T) {
	cache := NewRedisSearchCache(nil, " listings: ", 0)
	if cache.prefix != "listings:search" {
		t.Fatalf("expected prefix listings:search, got %s", cache.prefix)
	}
	if cache.ttl != time.Minute {
		t.Fatalf("expected default ttl of one minute, got %s", cache.ttl)
	}
}

func TestRedisRateLimiterWithoutClientAllows(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")
	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), "listing_create", "host-1", 5, time.Minute)
	if err != nil || count != 0 || retryAfter != 0 {
		t.Fatalf("expected no-op limiter, got count=%d retry=%d err=%v", count, retryAfter, err)
	}
	if limiter.prefix != "carconnect:rate_limit" {
		t.Fatalf("expected default prefix, got %s", limiter.prefix)
	}
}
