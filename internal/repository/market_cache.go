package repository

import (
	"context"
	"errors"
	"time"

	"FinScan/internal/domain/models"
	drepo "FinScan/internal/domain/repository"
	"FinScan/pkg/cache"
	"FinScan/pkg/logger"
)

const dayLayout = "2006-01-02"

// CacheTTLs sets how long each kind of market data stays cached. Zero disables caching.
type CacheTTLs struct {
	Profile time.Duration
	News    time.Duration
	Candles time.Duration
}

// CachedMarketData decorates a MarketData provider with read-through caching.
// Quotes and intraday candles always go to the provider.
type CachedMarketData struct {
	next  drepo.MarketData
	cache cache.Service
	ttl   CacheTTLs
	log   *logger.Logger
}

func NewCachedMarketData(next drepo.MarketData, c cache.Service, ttl CacheTTLs, log *logger.Logger) *CachedMarketData {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedMarketData{next: next, cache: c, ttl: ttl, log: log}
}

func (m *CachedMarketData) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	return m.next.Quote(ctx, symbol)
}

func (m *CachedMarketData) Profile(ctx context.Context, symbol string) (*models.Profile, error) {
	key := cache.GenerateKey("profile", symbol)
	var p models.Profile
	if m.lookup(ctx, key, m.ttl.Profile, &p) {
		return &p, nil
	}

	res, err := m.next.Profile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	m.store(ctx, key, m.ttl.Profile, res)
	return res, nil
}

func (m *CachedMarketData) News(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsItem, error) {
	key := cache.GenerateKeyWithParams("news", symbol, from.UTC().Format(dayLayout), to.UTC().Format(dayLayout))
	var items []models.NewsItem
	if m.lookup(ctx, key, m.ttl.News, &items) {
		return items, nil
	}

	res, err := m.next.News(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	m.store(ctx, key, m.ttl.News, res)
	return res, nil
}

func (m *CachedMarketData) Candles(ctx context.Context, symbol string, res models.Resolution, from, to time.Time) ([]models.Bar, error) {
	if res != models.ResDaily {
		return m.next.Candles(ctx, symbol, res, from, to)
	}

	key := cache.GenerateKeyWithParams("candles", symbol, string(res), from.UTC().Format(dayLayout), to.UTC().Format(dayLayout))
	var bars []models.Bar
	if m.lookup(ctx, key, m.ttl.Candles, &bars) {
		return bars, nil
	}

	out, err := m.next.Candles(ctx, symbol, res, from, to)
	if err != nil {
		return nil, err
	}
	m.store(ctx, key, m.ttl.Candles, out)
	return out, nil
}

func (m *CachedMarketData) lookup(ctx context.Context, key string, ttl time.Duration, dest interface{}) bool {
	if ttl <= 0 {
		return false
	}
	err := m.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		m.log.Warn("cache get failed", logger.String("key", key), logger.Error(err))
	}
	return false
}

func (m *CachedMarketData) store(ctx context.Context, key string, ttl time.Duration, value interface{}) {
	if ttl <= 0 {
		return
	}
	if err := m.cache.Set(ctx, key, value, ttl); err != nil {
		m.log.Warn("cache set failed", logger.String("key", key), logger.Error(err))
	}
}

var _ drepo.MarketData = (*CachedMarketData)(nil)
