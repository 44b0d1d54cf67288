package service

import (
	"context"
	"fmt"

	"sentiment_trader/internal/models"
)

// MarketData — что нужно для загрузки инструментов и прогрева.
type MarketData interface {
	ExchangeInfo(ctx context.Context, symbol string) (models.Instrument, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
}

// Registry — неизменяемые ограничения символов в порядке конфига.
type Registry struct {
	order []string
	m     map[string]models.Instrument
}

func NewRegistry() *Registry {
	return &Registry{m: map[string]models.Instrument{}}
}

func (r *Registry) Add(inst models.Instrument) {
	if _, ok := r.m[inst.Symbol]; !ok {
		r.order = append(r.order, inst.Symbol)
	}
	r.m[inst.Symbol] = inst
}

func (r *Registry) Get(symbol string) (models.Instrument, bool) {
	inst, ok := r.m[symbol]
	return inst, ok
}

func (r *Registry) All() []models.Instrument {
	out := make([]models.Instrument, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, r.m[s])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// LoadInstrument — метаданные символа с биржи + человекочитаемое имя из конфига.
func LoadInstrument(ctx context.Context, md MarketData, symbol, name string) (models.Instrument, error) {
	inst, err := md.ExchangeInfo(ctx, symbol)
	if err != nil {
		return models.Instrument{}, fmt.Errorf("load instrument %s: %w", symbol, err)
	}
	inst.Name = name
	return inst, nil
}
