package runner

import (
	"context"

	"sentiment_trader/internal/models"

	"go.uber.org/zap"
)

// refreshSentiment запускает обновление оценок в фоне, если окно открыто
// и прошлое обновление закончилось. Возвращает канал завершения или nil.
// Цикл не ждёт: решения идут на последних известных оценках.
func (s *Scheduler) refreshSentiment(ctx context.Context) <-chan struct{} {
	now := s.now()
	if !s.window.Due(now, s.lastRefresh) {
		return nil
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	s.lastRefresh = now

	states := s.snapshotStates()
	targets := make([]models.Instrument, 0, len(states))
	for _, st := range states {
		targets = append(targets, st.Instrument)
	}

	done := make(chan struct{})
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer close(done)
		defer s.refreshing.Store(false)

		updated := 0
		for _, inst := range targets {
			if ctx.Err() != nil {
				return
			}
			if s.fetchSentiment(ctx, inst) {
				updated++
			}
		}
		s.log.Info("sentiment refreshed", zap.Int("updated", updated), zap.Int("total", len(targets)))
	}()
	return done
}

// fetchSentiment: при ошибке остаётся последняя известная оценка (0, если её не было).
func (s *Scheduler) fetchSentiment(ctx context.Context, inst models.Instrument) bool {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.Sentiment.Timeout)
	defer cancel()

	score, err := s.source.GetSentiment(sctx, inst.Ticker(), inst.Name)
	if err != nil {
		s.log.Warn("sentiment fetch failed, keeping last known score",
			zap.String("symbol", inst.Symbol),
			zap.Float64("score", s.book.Score(inst.Symbol)),
			zap.Error(err))
		return false
	}
	s.book.Set(inst.Symbol, score, s.now())
	s.log.Debug("sentiment updated", zap.String("symbol", inst.Symbol), zap.Float64("score", score))
	return true
}
