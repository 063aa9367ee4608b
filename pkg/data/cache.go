package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantbay/confluence-bot/internal/exchange"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// CachedProvider memoizes FetchBars results of another provider. Parameter
// sweeps hit the same dataset once per distinct query instead of re-reading
// files or re-paging the API.
type CachedProvider struct {
	inner exchange.DataProvider

	mu    sync.RWMutex
	cache map[string][]types.OHLCV
}

// NewCachedProvider wraps a provider with an in-memory cache.
func NewCachedProvider(inner exchange.DataProvider) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: make(map[string][]types.OHLCV),
	}
}

func cacheKey(symbol, interval string, start, end time.Time, limit int) string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", symbol, interval, start.UnixMilli(), end.UnixMilli(), limit)
}

// FetchBars returns a cached copy when the same query was served before.
// Callers get their own slice; mutating it does not poison the cache.
func (p *CachedProvider) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]types.OHLCV, error) {
	key := cacheKey(symbol, interval, start, end, limit)

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		out := make([]types.OHLCV, len(cached))
		copy(out, cached)
		return out, nil
	}

	bars, err := p.inner.FetchBars(ctx, symbol, interval, start, end, limit)
	if err != nil {
		return nil, err
	}

	stored := make([]types.OHLCV, len(bars))
	copy(stored, bars)
	p.mu.Lock()
	p.cache[key] = stored
	p.mu.Unlock()
	return bars, nil
}

// Clear drops every cached entry.
func (p *CachedProvider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string][]types.OHLCV)
}

// Size returns the number of cached queries.
func (p *CachedProvider) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}
