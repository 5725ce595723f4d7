package redis

import (
	"context"
	"fmt"
	"time"

	"outreach-server/internal/config"
	"outreach-server/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Z aliases the driver's sorted set member type
type Z = redis.Z

// Client wraps the Redis client with observability. A nil *Client is valid
// and reports disabled; callers fall back accordingly.
type Client struct {
	client *redis.Client
	logger *observability.Logger
}

// NewClient creates a new Redis client
func NewClient(cfg config.RedisConfig, logger *observability.Logger) (*Client, error) {
	if !cfg.Enabled {
		logger.Info(context.Background(), "Redis is disabled, skipping client initialization")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, fmt.Sprintf("connected to Redis at %s:%d", cfg.Host, cfg.Port))

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

// IsEnabled returns whether Redis is available
func (c *Client) IsEnabled() bool {
	return c != nil && c.client != nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ZAdd adds a member with score to a sorted set
func (c *Client) ZAdd(ctx context.Context, key string, members ...Z) error {
	if !c.IsEnabled() {
		return fmt.Errorf("redis client not initialized")
	}
	return c.client.ZAdd(ctx, key, members...).Err()
}

// ZCard returns the number of members in a sorted set
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	if !c.IsEnabled() {
		return 0, fmt.Errorf("redis client not initialized")
	}
	return c.client.ZCard(ctx, key).Result()
}

// ZRange returns members in a sorted set by index range (ascending)
func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if !c.IsEnabled() {
		return nil, fmt.Errorf("redis client not initialized")
	}
	return c.client.ZRange(ctx, key, start, stop).Result()
}

// ZRemRangeByScore removes members with scores inside the given range
func (c *Client) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	if !c.IsEnabled() {
		return fmt.Errorf("redis client not initialized")
	}
	return c.client.ZRemRangeByScore(ctx, key, min, max).Err()
}

// Expire sets an expiration on a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if !c.IsEnabled() {
		return fmt.Errorf("redis client not initialized")
	}
	return c.client.Expire(ctx, key, expiration).Err()
}
