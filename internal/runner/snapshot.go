package runner

import (
	"sentiment_trader/internal/notify"
)

// Positions — открытые позиции для /positions.
func (s *Scheduler) Positions() []notify.PositionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]notify.PositionView, 0, len(s.states))
	for _, st := range s.states {
		p := st.Position
		if !p.IsOpen() {
			continue
		}
		v := notify.PositionView{
			Symbol:    p.Symbol,
			Direction: string(p.Direction),
			Quantity:  p.Quantity.String(),
			Entry:     p.EntryPrice,
			Extremum:  p.Extremum,
			Stop:      s.trail.StopPrice(p),
			OpenedAt:  p.OpenedAt,
		}
		if p.Loan != nil {
			v.Loan = p.Loan.Principal.String() + " " + p.Loan.Asset
		}
		out = append(out, v)
	}
	return out
}

func (s *Scheduler) Status() notify.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := notify.Status{
		Mode:      s.mode(),
		Halted:    s.health.Halted(),
		Sentiment: make(map[string]float64, len(s.states)),
	}
	if s.registry != nil {
		for _, inst := range s.registry.All() {
			st.Instruments = append(st.Instruments, inst.Symbol)
			st.Sentiment[inst.Symbol] = s.book.Score(inst.Symbol)
		}
	}
	st.LastCycle = s.health.LastCycle()
	return st
}
