// Package redis owns the shared Redis connection. It backs the token
// revocation list consulted by the auth middleware.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"carebridge/internal/platform/config"
)

// Client wraps go-redis with a health probe for the readiness endpoint.
type Client struct {
	*redis.Client
}

// New connects using the configured URL, or returns nil when Redis is not
// configured. The initial ping is bounded by the dial timeout so a dead
// Redis fails startup quickly instead of hanging.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.ClientName = "carebridge"
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health reports whether the connection is usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
