package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type reservationRepository struct{ s *Store }

func (r reservationRepository) ListReservations(_ context.Context) ([]entities.Reservation, error) {
	return r.list(func(entities.Reservation) bool { return true }), nil
}

func (r reservationRepository) ListReservationsByJob(_ context.Context, jobID string) ([]entities.Reservation, error) {
	return r.list(func(res entities.Reservation) bool { return res.JobID == jobID }), nil
}

func (r reservationRepository) list(keep func(entities.Reservation) bool) []entities.Reservation {
	out := []entities.Reservation{}
	_ = r.s.read(func(d *state) error {
		for _, res := range d.reservations {
			if keep(res) {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r reservationRepository) CreateReservation(_ context.Context, res *entities.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		if _, exists := d.reservations[res.ID]; exists {
			return entities.NewValidationError("id", "reservation %s already exists", res.ID)
		}
		now := time.Now()
		res.Version = 1
		res.CreatedAt, res.UpdatedAt = now, now
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r reservationRepository) SaveReservation(_ context.Context, res *entities.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		stored, ok := d.reservations[res.ID]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "reservation %s", res.ID)
		}
		if stored.Version != res.Version {
			return errors.Wrapf(entities.ErrConcurrentUpdate, "reservation %s: version %d, stored %d", res.ID, res.Version, stored.Version)
		}
		res.Version++
		res.UpdatedAt = time.Now()
		d.reservations[res.ID] = *res
		return nil
	})
}
