package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kgicweb/logger"

	"github.com/redis/go-redis/v9"
)

const signedURLKey = "signed_url:%s" // String: object path -> signed URL

// SignedURLCache 缓存签名链接，缓存时间为签名有效期的一半，保证取出的链接仍有足够的剩余时间
type SignedURLCache struct {
	client *redis.Client
}

// NewSignedURLCache 创建签名链接缓存
func NewSignedURLCache(client *redis.Client) *SignedURLCache {
	return &SignedURLCache{client: client}
}

// Get returns the cached URL for objectPath. ok is false on a miss.
func (c *SignedURLCache) Get(ctx context.Context, objectPath string) (string, bool, error) {
	if c.client == nil {
		return "", false, fmt.Errorf("Redis client not initialized")
	}

	val, err := c.client.Get(ctx, fmt.Sprintf(signedURLKey, objectPath)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get signed url: %w", err)
	}
	return val, true, nil
}

// Set stores a URL signed for validity.
func (c *SignedURLCache) Set(ctx context.Context, objectPath, signedURL string, validity time.Duration) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	ttl := validity / 2
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, fmt.Sprintf(signedURLKey, objectPath), signedURL, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache signed url: %w", err)
	}

	logger.Debug("签名链接已缓存",
		logger.String("path", objectPath),
		logger.Duration("ttl", ttl))
	return nil
}

// Invalidate drops the cached URL, e.g. after the object was replaced.
func (c *SignedURLCache) Invalidate(ctx context.Context, objectPath string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, fmt.Sprintf(signedURLKey, objectPath)).Err()
}
