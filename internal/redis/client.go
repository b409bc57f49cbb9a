package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

type SessionData struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Admin session management
func (c *Client) SetSession(token string, data *SessionData, ttl time.Duration) error {
	ctx := context.Background()
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	return c.rdb.Set(ctx, "session:"+token, jsonData, ttl).Err()
}

func (c *Client) GetSession(token string) (*SessionData, error) {
	ctx := context.Background()
	val, err := c.rdb.Get(ctx, "session:"+token).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session SessionData
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	return &session, nil
}

func (c *Client) DeleteSession(token string) error {
	ctx := context.Background()
	return c.rdb.Del(ctx, "session:"+token).Err()
}

// Catalog caching
func (c *Client) SetCatalog(key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog data: %w", err)
	}

	return c.rdb.Set(ctx, "catalog:"+key, jsonData, ttl).Err()
}

func (c *Client) GetCatalog(key string, dest interface{}) error {
	ctx := context.Background()
	val, err := c.rdb.Get(ctx, "catalog:"+key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("catalog cache miss")
		}
		return fmt.Errorf("failed to get catalog data: %w", err)
	}

	return json.Unmarshal([]byte(val), dest)
}

func (c *Client) DeleteCatalog(keys ...string) error {
	ctx := context.Background()
	for _, key := range keys {
		if err := c.rdb.Del(ctx, "catalog:"+key).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Submission rate limiting. Returns the request count for the IP within
// the current window; the first request in a window sets the expiry.
func (c *Client) IncrSubmissionCount(ip string, window time.Duration) (int64, error) {
	ctx := context.Background()
	key := "ratelimit:submit:" + ip
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count, nil
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
