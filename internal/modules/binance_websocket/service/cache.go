package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type tick struct {
	price float64
	at    time.Time
}

// PriceCache — последняя цена по символу из потока miniTicker.
type PriceCache struct {
	mu  sync.RWMutex
	m   map[string]tick
	now func() time.Time
}

func NewPriceCache() *PriceCache {
	return &PriceCache{m: make(map[string]tick), now: time.Now}
}

func (c *PriceCache) Set(symbol string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.m[symbol]; ok && prev.at.After(at) {
		return
	}
	c.m[symbol] = tick{price: price, at: at}
}

// Last — цена, если она не старше maxAge.
func (c *PriceCache) Last(symbol string, maxAge time.Duration) (float64, bool) {
	c.mu.RLock()
	t, ok := c.m[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if maxAge > 0 && c.now().Sub(t.at) > maxAge {
		return 0, false
	}
	return t.price, true
}

// TickerSource — REST-фолбэк.
type TickerSource interface {
	TickerPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceFeed — текущая цена для трейлинга и лимиток: кэш потока, иначе REST.
type PriceFeed struct {
	cache  *PriceCache
	rest   TickerSource
	maxAge time.Duration
	log    *zap.Logger
}

func NewPriceFeed(cache *PriceCache, rest TickerSource, maxAge time.Duration, log *zap.Logger) *PriceFeed {
	return &PriceFeed{cache: cache, rest: rest, maxAge: maxAge, log: log.Named("price_feed")}
}

func (f *PriceFeed) Price(ctx context.Context, symbol string) (float64, error) {
	if px, ok := f.cache.Last(symbol, f.maxAge); ok {
		return px, nil
	}
	px, err := f.rest.TickerPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	f.log.Debug("stream price stale, used REST ticker", zap.String("symbol", symbol), zap.Float64("price", px))
	f.cache.Set(symbol, px, f.cache.now())
	return px, nil
}
