package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// ReservationRepository provides access to stock reservations
type ReservationRepository interface {
	ListReservations(ctx context.Context) ([]entities.Reservation, error)
	ListReservationsByJob(ctx context.Context, jobID string) ([]entities.Reservation, error)
	CreateReservation(ctx context.Context, r *entities.Reservation) error
	// SaveReservation writes r with a version check
	SaveReservation(ctx context.Context, r *entities.Reservation) error
}
