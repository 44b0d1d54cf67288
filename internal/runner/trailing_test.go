package runner

import (
	"testing"

	"sentiment_trader/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func longAt(extremum float64) models.PositionState {
	return models.PositionState{
		Symbol:     "XRPUSDT",
		Direction:  models.DirectionLong,
		Quantity:   decimal.NewFromInt(10),
		EntryPrice: 2,
		Extremum:   extremum,
	}
}

func shortAt(extremum float64) models.PositionState {
	return models.PositionState{
		Symbol:     "XRPUSDT",
		Direction:  models.DirectionShort,
		Quantity:   decimal.NewFromInt(10),
		EntryPrice: 2,
		Extremum:   extremum,
		Loan:       &models.MarginLoan{Asset: "XRP", Principal: decimal.NewFromInt(10)},
	}
}

func TestTrailingLong(t *testing.T) {
	ts := TrailingStop{Pct: 0.05}

	tests := []struct {
		name     string
		extremum float64
		price    float64
		fire     bool
		moved    bool
		newExt   float64
	}{
		{name: "new high moves extremum", extremum: 2.0, price: 2.2, moved: true, newExt: 2.2},
		{name: "small pullback holds", extremum: 2.2, price: 2.1, newExt: 2.2},
		{name: "pullback through stop fires", extremum: 2.2, price: 2.08, fire: true, newExt: 2.2},
		{name: "non-positive price ignored", extremum: 2.2, price: 0, newExt: 2.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, tr := ts.Update(longAt(tt.extremum), tt.price)
			assert.Equal(t, tt.fire, tr.Fire)
			assert.Equal(t, tt.moved, tr.Moved)
			assert.InDelta(t, tt.newExt, next.Extremum, 1e-12)
		})
	}
}

func TestTrailingShort(t *testing.T) {
	ts := TrailingStop{Pct: 0.05}

	next, tr := ts.Update(shortAt(2.0), 1.8)
	assert.True(t, tr.Moved)
	assert.False(t, tr.Fire)
	assert.Equal(t, 1.8, next.Extremum)
	assert.InDelta(t, 1.89, tr.Stop, 1e-12)

	_, tr = ts.Update(next, 1.85)
	assert.False(t, tr.Fire)
	assert.False(t, tr.Moved)

	_, tr = ts.Update(next, 1.9)
	assert.True(t, tr.Fire)

	// восстановленный шорт без экстремума берёт первую цену
	next, tr = ts.Update(shortAt(0), 2.1)
	assert.True(t, tr.Moved)
	assert.Equal(t, 2.1, next.Extremum)
	assert.False(t, tr.Fire)
}

func TestTrailingExtremumIsMonotonic(t *testing.T) {
	ts := TrailingStop{Pct: 0.05}
	prices := []float64{2.0, 2.1, 2.05, 2.3, 2.25, 2.31, 2.2}

	pos := longAt(2.0)
	prev := pos.Extremum
	for _, p := range prices {
		pos, _ = ts.Update(pos, p)
		assert.GreaterOrEqual(t, pos.Extremum, prev)
		prev = pos.Extremum
	}
	assert.Equal(t, 2.31, pos.Extremum)

	pos = shortAt(2.0)
	prev = pos.Extremum
	for _, p := range []float64{1.9, 1.95, 1.7, 1.8, 1.69} {
		pos, _ = ts.Update(pos, p)
		assert.LessOrEqual(t, pos.Extremum, prev)
		prev = pos.Extremum
	}
	assert.Equal(t, 1.69, pos.Extremum)
}

func TestTrailingFlatNeverFires(t *testing.T) {
	ts := TrailingStop{Pct: 0.05}
	flat := models.FlatPosition("XRPUSDT")
	next, tr := ts.Update(flat, 1.0)
	assert.False(t, tr.Fire)
	assert.Equal(t, flat, next)
	assert.Zero(t, ts.StopPrice(flat))
	assert.InDelta(t, 1.9, ts.StopPrice(longAt(2.0)), 1e-12)
}
