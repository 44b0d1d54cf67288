package positions

import (
	"context"
	"sync"

	"sentiment_trader/internal/models"
)

// Memory — хранилище без БД (db_dsn пустой). Переживает только процесс.
type Memory struct {
	mu        sync.RWMutex
	data      map[string]models.PositionState
	incidents []models.MarginIncident
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]models.PositionState)}
}

func (m *Memory) Load(ctx context.Context) (map[string]models.PositionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.PositionState, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Save(ctx context.Context, st models.PositionState) error {
	if err := st.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[st.Symbol] = st
	return nil
}

func (m *Memory) RecordIncident(ctx context.Context, inc models.MarginIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidents = append(m.incidents, inc)
	return nil
}

func (m *Memory) Incidents() []models.MarginIncident {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.MarginIncident(nil), m.incidents...)
}
