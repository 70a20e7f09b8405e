package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docutag/seo-scraper/models"
)

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// DefaultRedisConfig returns default Redis cache settings
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "seo:page:",
		TTL:       24 * time.Hour,
	}
}

// Redis is a PageCache backed by Redis string keys holding JSON records
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies connectivity
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// Get implements PageCache
func (r *Redis) Get(ctx context.Context, key string) (models.PageRecord, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PageRecord{}, false, nil
	}
	if err != nil {
		return models.PageRecord{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var record models.PageRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.PageRecord{}, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return record, true, nil
}

// Set implements PageCache
func (r *Redis) Set(ctx context.Context, key string, record models.PageRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Close implements PageCache
func (r *Redis) Close() error {
	return r.client.Close()
}
