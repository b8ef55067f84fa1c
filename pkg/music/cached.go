package music

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache 远程缓存接口，pkg/redis.Client 实现了它
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type cachedSource struct {
	Source
	cache Cache
	ttl   time.Duration
}

// Cached wraps a source so successful results are kept in cache for ttl.
// Cache failures never fail the fetch.
func Cached(source Source, cache Cache, ttl time.Duration) Source {
	if cache == nil {
		return source
	}
	return &cachedSource{Source: source, cache: cache, ttl: ttl}
}

func (c *cachedSource) Fetch(ctx context.Context, q Query, want Kind) (*Result, error) {
	key := CacheKey(c.Name(), want, q)

	if raw, err := c.cache.Get(ctx, key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Lyrics cache read failed")
	} else if raw != "" {
		var res Result
		if err := json.Unmarshal([]byte(raw), &res); err == nil && res.Text != "" {
			logger.Info().Str("key", key).Msg("Lyrics cache HIT")
			return &res, nil
		}
	}

	res, err := c.Source.Fetch(ctx, q, want)
	if err != nil || res == nil || res.Text == "" {
		return res, err
	}

	if data, mErr := json.Marshal(res); mErr == nil {
		if sErr := c.cache.SetWithExpiration(ctx, key, data, c.ttl); sErr != nil {
			logger.Warn().Err(sErr).Str("key", key).Msg("Lyrics cache write failed")
		}
	}
	return res, nil
}

// Search forwards to the wrapped source when it can search.
func (c *cachedSource) Search(ctx context.Context, q Query) ([]Track, error) {
	s, ok := c.Source.(Searcher)
	if !ok {
		return nil, fmt.Errorf("source %s does not support search", c.Name())
	}
	return s.Search(ctx, q)
}

// CacheKey 生成缓存键
func CacheKey(source string, want Kind, q Query) string {
	return fmt.Sprintf("lyrics:%s:%s:%s:%s:%d",
		strings.ToLower(source), want,
		strings.ToLower(strings.TrimSpace(q.Artist)),
		strings.ToLower(strings.TrimSpace(q.Title)),
		int(q.Duration/time.Second))
}
