package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis. It holds
// settled results only, keyed by payment reference.
type SettlementCache struct {
	client *goredis.Client
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement result cache.
func NewSettlementCache(client *goredis.Client) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement:",
	}
}

// Get retrieves a settled result by payment reference.
// Returns nil, nil if the key does not exist.
func (c *SettlementCache) Get(ctx context.Context, paymentRef string) (*domain.SettlementResult, error) {
	val, err := c.client.Get(ctx, c.prefix+paymentRef).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement get: %w", err)
	}

	var result domain.SettlementResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("decode cached settlement %s: %w", paymentRef, err)
	}
	return &result, nil
}

// Set stores a settled result with TTL. The replay flag is never cached.
func (c *SettlementCache) Set(ctx context.Context, result *domain.SettlementResult, ttl time.Duration) error {
	stored := *result
	stored.Replayed = false

	val, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode settlement %s: %w", result.PaymentRef, err)
	}
	if err := c.client.Set(ctx, c.prefix+result.PaymentRef, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis settlement set: %w", err)
	}
	return nil
}
