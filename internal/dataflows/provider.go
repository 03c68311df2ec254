package dataflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/cache"
)

// Provider fetches candles for [start, end] inclusive of both dates.
type Provider interface {
	Name() string
	History(ctx context.Context, ticker string, start, end time.Time, interval Interval) ([]Bar, error)
}

// NewProvider picks the configured provider and wraps it with the cache.
func NewProvider(cfg *config.Config, store cache.Store) (Provider, error) {
	var p Provider
	switch cfg.OHLCVProvider {
	case "longport":
		lp, err := NewLongportClient(cfg)
		if err != nil {
			return nil, err
		}
		p = lp
	case "yahoo", "":
		p = NewYahooFinanceClient()
	default:
		return nil, fmt.Errorf("unknown OHLCV provider %q", cfg.OHLCVProvider)
	}
	if store == nil || !cfg.CacheEnabled {
		return p, nil
	}
	return &Cached{inner: p, store: store, ttl: cfg.CacheTTL}, nil
}

// Cached memoizes History results in a cache.Store.
type Cached struct {
	inner Provider
	store cache.Store
	ttl   time.Duration
}

func NewCached(inner Provider, store cache.Store, ttl time.Duration) *Cached {
	return &Cached{inner: inner, store: store, ttl: ttl}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) History(ctx context.Context, ticker string, start, end time.Time, interval Interval) ([]Bar, error) {
	key := cache.Key(c.inner.Name(), "history", map[string]string{
		"ticker":   NormalizeSymbol(ticker),
		"start":    start.Format("2006-01-02"),
		"end":      end.Format("2006-01-02"),
		"interval": string(interval),
	})
	var cached []Bar
	if cache.GetJSON(ctx, c.store, key, &cached) {
		return cached, nil
	}
	bars, err := c.inner.History(ctx, ticker, start, end, interval)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.store, key, bars, c.ttl); err != nil {
		log.Printf("[Dataflows] cache set %s: %v", key, err)
	}
	return bars, nil
}
