package memory

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type stockRepository struct{ s *Store }

func (r stockRepository) ListSnapshots(_ context.Context) ([]entities.StockSnapshot, error) {
	out := []entities.StockSnapshot{}
	_ = r.s.read(func(d *state) error {
		for _, snap := range d.stock {
			out = append(out, snap)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StockID < out[j].StockID })
	return out, nil
}

func (r stockRepository) GetSnapshot(_ context.Context, id entities.StockID) (*entities.StockSnapshot, error) {
	var snap entities.StockSnapshot
	err := r.s.read(func(d *state) error {
		s, ok := d.stock[id]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "stock %s", id)
		}
		snap = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r stockRepository) SaveSnapshot(_ context.Context, snap *entities.StockSnapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		d.stock[snap.StockID] = *snap
		return nil
	})
}
