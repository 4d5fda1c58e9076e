package redis

import (
	"context"
	"testing"
	"time"

	"settlement-ledger/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResult() *domain.SettlementResult {
	return &domain.SettlementResult{
		PaymentRef:          "PAY-1",
		PayerAccount:        "ACC-1001",
		PayerEntryID:        "txe_01",
		MerchantEntryID:     "txe_02",
		FeeEntryID:          "txe_03",
		Amount:              decimal.RequireFromString("200.00"),
		Fee:                 decimal.RequireFromString("4.00"),
		FeeMode:             domain.FeeModeIncluded,
		PayerBalance:        decimal.RequireFromString("800.00"),
		MerchantBalance:     decimal.RequireFromString("196.00"),
		FeeCollectorBalance: decimal.RequireFromString("4.00"),
		SettledAt:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSettlementCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettlementCache(client)
	ctx := context.Background()

	// Get before set => nil
	result, err := cache.Get(ctx, "PAY-1")
	assert.NoError(t, err)
	assert.Nil(t, result)

	want := newTestResult()
	want.Replayed = true
	require.NoError(t, cache.Set(ctx, want, 24*time.Hour))
	assert.True(t, s.Exists("settlement:PAY-1"))

	got, err := cache.Get(ctx, "PAY-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "txe_02", got.MerchantEntryID)
	assert.True(t, want.PayerBalance.Equal(got.PayerBalance))
	assert.True(t, want.Fee.Equal(got.Fee))
	assert.True(t, want.SettledAt.Equal(got.SettledAt))
	assert.False(t, got.Replayed, "replay flag is not cached")
	assert.True(t, want.Replayed, "caller's value is untouched")
}

func TestSettlementCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettlementCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, newTestResult(), time.Second))

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "PAY-1")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestSettlementCache_CorruptValue(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettlementCache(client)

	require.NoError(t, s.Set("settlement:PAY-1", "not-json"))

	_, err := cache.Get(context.Background(), "PAY-1")
	assert.Error(t, err)
}

func TestSettlementCache_ServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr(), MaxRetries: -1})
	cache := NewSettlementCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "PAY-1")
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), newTestResult(), time.Minute))
}
