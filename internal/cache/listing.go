package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Velipetroll/Backend-Cloudinary/internal/config"
	"github.com/Velipetroll/Backend-Cloudinary/internal/domain"
)

const listingKeyPrefix = "assets:list"

// ListingCache memoizes listings per destination key. Entries for a key are
// dropped whenever an asset is stored under it.
type ListingCache interface {
	Get(ctx context.Context, mode string, key domain.DestinationKey) ([]domain.AssetDescriptor, bool, error)
	Set(ctx context.Context, mode string, key domain.DestinationKey, assets []domain.AssetDescriptor) error
	Invalidate(ctx context.Context, key domain.DestinationKey) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisListingCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopListingCache struct{}

// NewListingCache returns a Redis-backed cache when enabled, a no-op otherwise.
func NewListingCache(cfg config.CacheConfig) (ListingCache, error) {
	if !cfg.Enabled {
		return &noopListingCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisListingCache{client: client, ttl: ttl}, nil
}

func NewNoopListingCache() ListingCache {
	return &noopListingCache{}
}

func (c *redisListingCache) Get(ctx context.Context, mode string, key domain.DestinationKey) ([]domain.AssetDescriptor, bool, error) {
	payload, err := c.client.Get(ctx, buildListingKey(mode, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var assets []domain.AssetDescriptor
	if err := json.Unmarshal(payload, &assets); err != nil {
		return nil, false, fmt.Errorf("decode listing cache: %w", err)
	}
	if assets == nil {
		assets = []domain.AssetDescriptor{}
	}

	return assets, true, nil
}

func (c *redisListingCache) Set(ctx context.Context, mode string, key domain.DestinationKey, assets []domain.AssetDescriptor) error {
	payload, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("encode listing cache: %w", err)
	}

	if err := c.client.Set(ctx, buildListingKey(mode, key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisListingCache) Invalidate(ctx context.Context, key domain.DestinationKey) error {
	return deleteKeysWithPrefix(ctx, c.client, fmt.Sprintf("%s:%s|", listingKeyPrefix, key.String()))
}

func (c *redisListingCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, listingKeyPrefix+":")
}

func (c *redisListingCache) Close() error {
	return c.client.Close()
}

func (n *noopListingCache) Get(ctx context.Context, mode string, key domain.DestinationKey) ([]domain.AssetDescriptor, bool, error) {
	return nil, false, nil
}

func (n *noopListingCache) Set(ctx context.Context, mode string, key domain.DestinationKey, assets []domain.AssetDescriptor) error {
	return nil
}

func (n *noopListingCache) Invalidate(ctx context.Context, key domain.DestinationKey) error {
	return nil
}

func (n *noopListingCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopListingCache) Close() error {
	return nil
}

// The key string goes first so Invalidate can drop every mode with one scan.
func buildListingKey(mode string, key domain.DestinationKey) string {
	if mode == "" {
		mode = "prefix"
	}
	return fmt.Sprintf("%s:%s|%s", listingKeyPrefix, key.String(), mode)
}
