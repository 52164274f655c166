package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/itinerary/internal/domain"
)

// Cache is the small key/value surface CachedOCR needs.
// Get returns "" with a nil error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a Cache backed by the redis server at addr.
// Keys are namespaced with prefix.
func NewRedisCache(addr, prefix string) (Cache, func() error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	return &redisCache{client: c, prefix: prefix}, c.Close
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// CachedOCR memoizes OCR results by the SHA-256 of the document bytes.
// Cache failures are logged and never fail the OCR call.
type CachedOCR struct {
	next  OCR
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedOCR wraps next with cache.
func NewCachedOCR(next OCR, cache Cache, ttl time.Duration, log *slog.Logger) *CachedOCR {
	return &CachedOCR{next: next, cache: cache, ttl: ttl, log: log}
}

// Text implements OCR.
func (c *CachedOCR) Text(ctx context.Context, doc domain.Document) (string, error) {
	key := cacheKey(doc.Data)

	if hit, err := c.cache.Get(ctx, key); err != nil {
		c.log.WarnContext(ctx, "ocr cache read failed", "document", doc.Name, "error", err)
	} else if hit != "" {
		return hit, nil
	}

	text, err := c.next.Text(ctx, doc)
	if err != nil {
		return "", err
	}
	if text != "" {
		if err := c.cache.Set(ctx, key, text, c.ttl); err != nil {
			c.log.WarnContext(ctx, "ocr cache write failed", "document", doc.Name, "error", err)
		}
	}
	return text, nil
}

func cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("ocr:%s", hex.EncodeToString(sum[:]))
}
