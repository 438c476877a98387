package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// RFQRepository provides access to requests for quotation
type RFQRepository interface {
	CreateRFQ(ctx context.Context, rfq *entities.RFQ) error
	// GetRFQ looks an RFQ up by id or by number
	GetRFQ(ctx context.Context, idOrNumber string) (*entities.RFQ, error)
	ListRFQs(ctx context.Context) ([]*entities.RFQ, error)
	// NextRFQSequence returns the next free sequence among numbers of the
	// form <prefix>-<year>-NNNN, whenever those RFQs were issued
	NextRFQSequence(ctx context.Context, prefix string, year int) (int, error)
}

// QuotationRepository provides access to supplier quotations
type QuotationRepository interface {
	CreateQuotation(ctx context.Context, q *entities.Quotation) error
	GetQuotation(ctx context.Context, id string) (*entities.Quotation, error)
	ListQuotationsByRFQ(ctx context.Context, rfqID string) ([]entities.Quotation, error)
	// SaveQuotation writes status changes with a version check
	SaveQuotation(ctx context.Context, q *entities.Quotation) error
}
