package service

import (
	"sync"
	"time"

	"sentiment_trader/internal/metrics"
)

// Book — последняя известная оценка по символу. Нет оценки — 0 (нейтрально).
// Пишет фоновое обновление, читает цикл планировщика.
type Book struct {
	mu      sync.RWMutex
	scores  map[string]float64
	updated map[string]time.Time
}

func NewBook() *Book {
	return &Book{scores: map[string]float64{}, updated: map[string]time.Time{}}
}

func (b *Book) Score(symbol string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.scores[symbol]
}

func (b *Book) Set(symbol string, score float64, at time.Time) {
	score = Clamp(score)
	b.mu.Lock()
	b.scores[symbol] = score
	b.updated[symbol] = at
	b.mu.Unlock()
	metrics.SentimentScore.WithLabelValues(symbol).Set(score)
}

// Updated — когда оценка последний раз успешно обновлялась (zero — никогда).
func (b *Book) Updated(symbol string) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated[symbol]
}
