package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sentiment_trader/internal/models"
	"sentiment_trader/internal/modules/config"
	indicators "sentiment_trader/internal/modules/indicators/service"

	"go.uber.org/zap"
)

// Warmed — загруженный инструмент с уже прогретой историей.
type Warmed struct {
	Instrument models.Instrument
	Pipeline   *indicators.Pipeline
}

type Warmuper struct {
	md     MarketData
	params indicators.Params
	cfg    *config.Config
	log    *zap.Logger

	// ограничитель параллелизма, чтобы не словить rate limit
	sem chan struct{}
}

func NewWarmuper(md MarketData, params indicators.Params, cfg *config.Config, log *zap.Logger) *Warmuper {
	return &Warmuper{
		md:     md,
		params: params,
		cfg:    cfg,
		log:    log.Named("bootstrap"),
		sem:    make(chan struct{}, 4),
	}
}

// Warmup: метаданные + последние warmup_candles закрытых свечей по каждому символу.
// Символ с ошибкой пропускается; если не загрузился ни один — ошибка.
func (w *Warmuper) Warmup(ctx context.Context) (*Registry, []Warmed, error) {
	list := w.cfg.Instruments
	need := w.cfg.Indicators.WarmupCandles
	if need < w.params.Warmup() {
		need = w.params.Warmup()
	}
	started := time.Now()

	results := make([]*Warmed, len(list))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, ic := range list {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-w.sem }()

			wd, err := w.one(ctx, ic, need)
			if err != nil {
				w.log.Error("instrument excluded", zap.String("symbol", ic.Symbol), zap.Error(err))
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = wd
		}()
	}
	wg.Wait()

	reg := NewRegistry()
	out := make([]Warmed, 0, len(list))
	for _, r := range results {
		if r == nil {
			continue
		}
		reg.Add(r.Instrument)
		out = append(out, *r)
	}
	if len(out) == 0 {
		if firstErr == nil {
			firstErr = ctx.Err()
		}
		return nil, nil, fmt.Errorf("warmup: no instruments loaded: %w", firstErr)
	}
	w.log.Info("warmup done", zap.Int("instruments", len(out)), zap.Int("of", len(list)),
		zap.Int("candles", need), zap.Duration("took", time.Since(started)))
	return reg, out, nil
}

func (w *Warmuper) one(ctx context.Context, ic config.InstrumentConfig, need int) (*Warmed, error) {
	inst, err := LoadInstrument(ctx, w.md, ic.Symbol, ic.Name)
	if err != nil {
		return nil, err
	}
	// +1: последняя свеча ещё формируется
	candles, err := w.md.Klines(ctx, ic.Symbol, w.cfg.Trading.Interval, need+1)
	if err != nil {
		return nil, fmt.Errorf("warmup klines %s: %w", ic.Symbol, err)
	}
	if len(candles) > 0 {
		candles = candles[:len(candles)-1]
	}

	pl := indicators.NewPipeline(inst.Symbol, w.params)
	set := pl.Seed(candles)
	if !set.Ready {
		w.log.Warn("not enough history, instrument holds until warmed up",
			zap.String("symbol", inst.Symbol), zap.Int("have", pl.Len()), zap.Int("need", w.params.Warmup()))
	}
	w.log.Info("instrument loaded",
		zap.String("symbol", inst.Symbol), zap.Stringer("step", inst.StepSize), zap.Stringer("tick", inst.TickSize),
		zap.Stringer("minQty", inst.MinQty), zap.Int("candles", pl.Len()), zap.Bool("ready", set.Ready))
	return &Warmed{Instrument: inst, Pipeline: pl}, nil
}
