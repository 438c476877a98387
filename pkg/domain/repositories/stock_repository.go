package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StockRepository provides access to stock snapshots
type StockRepository interface {
	ListSnapshots(ctx context.Context) ([]entities.StockSnapshot, error)
	GetSnapshot(ctx context.Context, id entities.StockID) (*entities.StockSnapshot, error)
	// SaveSnapshot inserts or replaces the snapshot for its stock id
	SaveSnapshot(ctx context.Context, s *entities.StockSnapshot) error
}
