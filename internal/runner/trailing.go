package runner

import "sentiment_trader/internal/models"

// Trigger — итог проверки трейлинг-стопа.
type Trigger struct {
	Fire     bool
	Stop     float64
	Moved    bool // экстремум обновился
	Extremum float64
}

// TrailingStop: long тянет стоп за максимумом, short за минимумом.
// Экстремум монотонен в пределах одной позиции.
type TrailingStop struct {
	Pct float64
}

func (ts TrailingStop) Update(pos models.PositionState, price float64) (models.PositionState, Trigger) {
	if price <= 0 {
		return pos, Trigger{Extremum: pos.Extremum}
	}
	var tr Trigger
	switch pos.Direction {
	case models.DirectionLong:
		if price > pos.Extremum {
			pos.Extremum = price
			tr.Moved = true
		}
		tr.Stop = pos.Extremum * (1 - ts.Pct)
		tr.Fire = price <= tr.Stop
	case models.DirectionShort:
		if pos.Extremum <= 0 || price < pos.Extremum {
			pos.Extremum = price
			tr.Moved = true
		}
		tr.Stop = pos.Extremum * (1 + ts.Pct)
		tr.Fire = price >= tr.Stop
	}
	tr.Extremum = pos.Extremum
	return pos, tr
}

// StopPrice — текущий уровень стопа без учёта новой цены.
func (ts TrailingStop) StopPrice(pos models.PositionState) float64 {
	switch pos.Direction {
	case models.DirectionLong:
		return pos.Extremum * (1 - ts.Pct)
	case models.DirectionShort:
		return pos.Extremum * (1 + ts.Pct)
	}
	return 0
}
