// Package redis mirrors access log entries onto a Redis stream for downstream consumers
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
)

// Config holds all configuration for the Redis client
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream length (approximate trimming); zero keeps everything
	MaxLen int64
}

// Client is a wrapper around the go-redis client that publishes access logs
type Client struct {
	client *redis.Client
	config *Config
}

// NewClient creates and connects a new Client
func NewClient(cfg *Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{client: rdb, config: cfg}, nil
}

// Close gracefully closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishAccessLog adds an access log entry to the configured stream using XADD
func (c *Client) PublishAccessLog(ctx context.Context, entry *models.AccessLog) error {
	args := &redis.XAddArgs{
		Stream: c.config.Stream,
		Values: AccessLogValues(entry),
	}
	if c.config.MaxLen > 0 {
		args.MaxLen = c.config.MaxLen
		args.Approx = true
	}

	if err := c.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to stream %s: %w", c.config.Stream, err)
	}
	return nil
}

// AccessLogValues flattens an entry into stream fields. Password attempts never carry a value.
func AccessLogValues(entry *models.AccessLog) map[string]interface{} {
	values := map[string]interface{}{
		"id":             entry.ID.String(),
		"type":           entry.ContentType,
		"slug":           entry.Slug,
		"granted":        strconv.FormatBool(entry.Granted),
		"credentialType": string(entry.CredentialType),
		"timestamp":      entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if entry.RuleID != nil {
		values["ruleId"] = entry.RuleID.String()
	}
	if entry.CredentialType == models.CredentialTypeEmail && entry.CredentialValue != nil {
		values["credentialValue"] = *entry.CredentialValue
	}
	if entry.DenialReason != nil {
		values["denialReason"] = string(*entry.DenialReason)
	}
	if entry.IPAddress != nil {
		values["ipAddress"] = *entry.IPAddress
	}
	if entry.UserAgent != nil {
		values["userAgent"] = *entry.UserAgent
	}
	return values
}
