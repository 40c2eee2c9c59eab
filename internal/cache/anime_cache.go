package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnimeCache keeps anime slugs in Redis so page links can be built without
// a database round trip
type AnimeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewAnimeCache connects to Redis and verifies the connection
func NewAnimeCache(opts Options) (*AnimeCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &AnimeCache{client: rdb, ttl: opts.TTL}, nil
}

func slugKey(animeID int) string {
	return fmt.Sprintf("kitsu:anime:%d:slug", animeID)
}

// GetSlug returns the cached slug, ok is false on a miss
func (c *AnimeCache) GetSlug(ctx context.Context, animeID int) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, nil
	}

	slug, err := c.client.Get(ctx, slugKey(animeID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return slug, true, nil
}

// SetSlug stores a slug; a zero TTL keeps it until evicted
func (c *AnimeCache) SetSlug(ctx context.Context, animeID int, slug string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, slugKey(animeID), slug, c.ttl).Err()
}

func (c *AnimeCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
