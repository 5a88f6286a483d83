package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-ledger/internal/model"
)

// memoryCache is an in-process cache.Cache.
type memoryCache struct {
	entries map[string][]byte
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	if c.failGet {
		return false, errors.New("connection refused")
	}
	b, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memoryCache) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = b
	return nil
}

func (c *memoryCache) Close() error { return nil }

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache()
	loads := 0
	load := func() (*model.Summary, error) {
		loads++
		return &model.Summary{TotalPaidOut: decimal.RequireFromString("11580.00"), WonBets: 4}, nil
	}

	first, err := cached(ctx, c, "summary", load)
	require.NoError(t, err)
	second, err := cached(ctx, c, "summary", load)
	require.NoError(t, err)

	assert.Equal(t, 1, loads)
	assert.True(t, first.TotalPaidOut.Equal(second.TotalPaidOut))
	assert.Equal(t, first.WonBets, second.WonBets)
}

func TestCachedFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache()
	c.failGet = true
	loads := 0

	for range 2 {
		res, err := cached(ctx, c, "winners", func() ([]*model.DailyResult, error) {
			loads++
			return []*model.DailyResult{{NetResult: decimal.NewFromInt(5)}}, nil
		})
		require.NoError(t, err)
		require.Len(t, res, 1)
	}
	assert.Equal(t, 2, loads)
}

func TestCachedStoreError(t *testing.T) {
	c := newMemoryCache()
	_, err := cached(context.Background(), c, "summary", func() (*model.Summary, error) {
		return nil, errors.New("connection reset")
	})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, c.entries)
}

func TestDayBounds(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	s := NewReportService(nil, kolkata, nil)

	// 20:00 UTC is already the next day in IST.
	start, end := s.dayBounds(time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, kolkata), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}
