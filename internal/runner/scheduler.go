package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sentiment_trader/internal/metrics"
	"sentiment_trader/internal/models"
	bootstrap "sentiment_trader/internal/modules/bootstrap/service"
	"sentiment_trader/internal/modules/config"
	indicators "sentiment_trader/internal/modules/indicators/service"
	sentiment "sentiment_trader/internal/modules/sentiment/service"
	strategy "sentiment_trader/internal/modules/strategy/service"
	"sentiment_trader/internal/notify"
	"sentiment_trader/internal/runner/lifecycle"
	"sentiment_trader/pkg/tracing"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CandleSource interface {
	LatestClosedCandle(ctx context.Context, symbol, interval string) (models.Candle, error)
}

// Lifecycle — операции с позицией. Реализация: *lifecycle.Manager.
type Lifecycle interface {
	OpenLong(ctx context.Context, inst models.Instrument, pos models.PositionState) (lifecycle.Result, error)
	CloseLong(ctx context.Context, inst models.Instrument, pos models.PositionState) (lifecycle.Result, error)
	OpenShort(ctx context.Context, inst models.Instrument, pos models.PositionState) (lifecycle.Result, error)
	CloseShort(ctx context.Context, inst models.Instrument, pos models.PositionState) (lifecycle.Result, error)
}

type Decider interface {
	Decide(symbol string, in strategy.Input) models.Decision
}

type Warmer interface {
	Warmup(ctx context.Context) (*bootstrap.Registry, []bootstrap.Warmed, error)
}

type Health interface {
	SetReady(v bool)
	TouchCycle(t time.Time)
	LastCycle() time.Time
	SetHalted(symbol, reason string)
	Halted() map[string]string
}

// InstrumentState — всё, что планировщик держит по одному символу.
// Пишет только цикл; снапшоты читают под mu.
type InstrumentState struct {
	Instrument models.Instrument
	Pipeline   *indicators.Pipeline
	Position   models.PositionState
	Halted     string // причина остановки; пусто — торгуем
}

type inflightOp struct {
	Symbol  string
	Op      string
	Started time.Time
}

type Deps struct {
	fx.In

	Config    *config.Config
	Candles   CandleSource
	Prices    lifecycle.PriceSource
	Lifecycle Lifecycle
	Decider   Decider
	Source    sentiment.Source
	Book      *sentiment.Book
	Window    sentiment.Window
	Store     Store
	Notifier  notify.Notifier
	Health    Health
	Warmer    Warmer
	Log       *zap.Logger
}

type Scheduler struct {
	cfg      *config.Config
	candles  CandleSource
	prices   lifecycle.PriceSource
	lm       Lifecycle
	decider  Decider
	source   sentiment.Source
	book     *sentiment.Book
	window   sentiment.Window
	store    Store
	notifier notify.Notifier
	health   Health
	warmer   Warmer
	trail    TrailingStop
	log      *zap.Logger

	mu       sync.RWMutex
	registry *bootstrap.Registry
	states   []*InstrumentState

	inflight    atomic.Pointer[inflightOp]
	refreshing  atomic.Bool
	lastRefresh time.Time
	bg          sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(d Deps) *Scheduler {
	return &Scheduler{
		cfg:      d.Config,
		candles:  d.Candles,
		prices:   d.Prices,
		lm:       d.Lifecycle,
		decider:  d.Decider,
		source:   d.Source,
		book:     d.Book,
		window:   d.Window,
		store:    d.Store,
		notifier: d.Notifier,
		health:   d.Health,
		warmer:   d.Warmer,
		trail:    TrailingStop{Pct: d.Config.Trading.TrailingStopPct},
		log:      d.Log.Named("scheduler"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Scheduler) mode() string {
	if s.cfg.Trading.Live {
		return "live"
	}
	return "paper"
}

// Load: прогрев, восстановление позиций из хранилища. Цикл не запускает.
func (s *Scheduler) Load(ctx context.Context) error {
	reg, warmed, err := s.warmer.Warmup(ctx)
	if err != nil {
		return errors.Wrap(err, "warmup")
	}
	saved, err := s.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load positions")
	}

	states := make([]*InstrumentState, 0, len(warmed))
	for _, w := range warmed {
		sym := w.Instrument.Symbol
		pos := models.FlatPosition(sym)
		if p, ok := saved[sym]; ok {
			delete(saved, sym)
			if err := p.Validate(); err != nil {
				s.log.Error("stored position is invalid, starting flat", zap.String("symbol", sym), zap.Error(err))
			} else {
				pos = p
				if pos.IsOpen() {
					s.log.Info("position restored",
						zap.String("symbol", sym),
						zap.String("direction", string(pos.Direction)),
						zap.Stringer("qty", pos.Quantity),
						zap.Float64("entry", pos.EntryPrice),
						zap.Float64("extremum", pos.Extremum))
				}
			}
		}
		states = append(states, &InstrumentState{Instrument: w.Instrument, Pipeline: w.Pipeline, Position: pos})
		setDirectionGauge(pos)
	}
	// позиции по символам, которых нет в конфиге, не трогаем, но оператор должен знать
	for sym, p := range saved {
		if p.IsOpen() {
			s.log.Error("stored open position for instrument that is not loaded",
				zap.String("symbol", sym), zap.String("direction", string(p.Direction)), zap.Stringer("qty", p.Quantity))
			s.notifier.Sendf("⚠️ %s: open %s position in store, instrument not loaded", sym, p.Direction)
		}
	}

	s.mu.Lock()
	s.registry = reg
	s.states = states
	s.mu.Unlock()
	return nil
}

// Start — OnStart хук: Load + фоновый цикл.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Run(loopCtx)
	}()

	s.health.SetReady(true)
	s.log.Info("scheduler started", zap.String("mode", s.mode()), zap.Int("instruments", len(s.states)))
	s.notifier.Sendf("🚀 trader started: mode=%s instruments=%d", s.mode(), len(s.states))
	return nil
}

// Stop — OnStop хук. Ждёт текущую операцию до дедлайна ctx; по дедлайну
// операция бросается, в лог уходит символ и шаг.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.health.SetReady(false)
	if op := s.inflight.Load(); op != nil {
		s.log.Info("waiting for in-flight operation", zap.String("symbol", op.Symbol), zap.String("op", op.Op))
	}
	s.cancel()

	select {
	case <-s.done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		if op := s.inflight.Load(); op != nil {
			s.log.Error("shutdown deadline exceeded, in-flight operation abandoned",
				zap.String("symbol", op.Symbol),
				zap.String("op", op.Op),
				zap.Duration("running", s.now().Sub(op.Started)))
			s.notifier.Sendf("⚠️ shutdown: %s %s abandoned, check the exchange account", op.Symbol, op.Op)
		} else {
			s.log.Warn("shutdown deadline exceeded before loop exit")
		}
		return nil
	}

	bgDone := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(bgDone)
	}()
	select {
	case <-bgDone:
	case <-ctx.Done():
		s.log.Warn("sentiment refresh still running at shutdown")
	}
	return nil
}

// Run крутит RunCycle раз в loop_interval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.RunCycle(ctx)
		if err := s.sleep(ctx, s.cfg.Trading.LoopInterval); err != nil {
			return
		}
	}
}

// RunCycle — одна итерация: сентимент (в фоне), новые свечи и решения,
// затем трейлинг-стопы по открытым позициям.
func (s *Scheduler) RunCycle(ctx context.Context) {
	started := s.now()
	span, ctx := tracing.StartSpan(ctx, "scheduler cycle")
	defer tracing.Finish(span, nil)

	s.refreshSentiment(ctx)

	for _, st := range s.snapshotStates() {
		if ctx.Err() != nil {
			return
		}
		s.processInstrument(ctx, st)
	}

	for _, st := range s.snapshotStates() {
		if ctx.Err() != nil {
			return
		}
		s.runTrailing(ctx, st)
	}

	metrics.CycleDuration.Observe(s.now().Sub(started).Seconds())
	s.health.TouchCycle(s.now())
}

func (s *Scheduler) snapshotStates() []*InstrumentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*InstrumentState, len(s.states))
	copy(out, s.states)
	return out
}

func setDirectionGauge(pos models.PositionState) {
	v := 0.0
	switch pos.Direction {
	case models.DirectionLong:
		v = 1
	case models.DirectionShort:
		v = -1
	}
	metrics.PositionDirection.WithLabelValues(pos.Symbol).Set(v)
}
