package runner

import (
	"context"

	"sentiment_trader/internal/models"
)

// Store — персистентность позиций между рестартами.
type Store interface {
	Load(ctx context.Context) (map[string]models.PositionState, error)
	Save(ctx context.Context, st models.PositionState) error
	RecordIncident(ctx context.Context, inc models.MarginIncident) error
}
