package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type rfqRepository struct{ s *Store }

func (r rfqRepository) CreateRFQ(_ context.Context, rfq *entities.RFQ) error {
	if err := rfq.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		if _, exists := d.rfqs[rfq.ID]; exists {
			return entities.NewValidationError("id", "rfq %s already exists", rfq.ID)
		}
		for _, other := range d.rfqs {
			if other.Number == rfq.Number {
				return entities.NewValidationError("number", "rfq number %s already in use", rfq.Number)
			}
		}
		now := time.Now()
		rfq.CreatedAt, rfq.UpdatedAt = now, now
		d.rfqs[rfq.ID] = cloneRFQ(*rfq)
		return nil
	})
}

func (r rfqRepository) GetRFQ(_ context.Context, idOrNumber string) (*entities.RFQ, error) {
	var found entities.RFQ
	err := r.s.read(func(d *state) error {
		if rfq, ok := d.rfqs[idOrNumber]; ok {
			found = cloneRFQ(rfq)
			return nil
		}
		for _, rfq := range d.rfqs {
			if rfq.Number == idOrNumber {
				found = cloneRFQ(rfq)
				return nil
			}
		}
		return errors.Wrapf(entities.ErrNotFound, "rfq %s", idOrNumber)
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r rfqRepository) ListRFQs(_ context.Context) ([]*entities.RFQ, error) {
	var out []*entities.RFQ
	_ = r.s.read(func(d *state) error {
		for _, rfq := range d.rfqs {
			c := cloneRFQ(rfq)
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r rfqRepository) NextRFQSequence(_ context.Context, prefix string, year int) (int, error) {
	stem := entities.RFQNumberStem(prefix, year)
	highest := 0
	_ = r.s.read(func(d *state) error {
		for _, rfq := range d.rfqs {
			if seq := entities.RFQSequence(rfq.Number, stem); seq > highest {
				highest = seq
			}
		}
		return nil
	})
	return highest + 1, nil
}

type quotationRepository struct{ s *Store }

func (r quotationRepository) CreateQuotation(_ context.Context, q *entities.Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		if _, exists := d.quotations[q.ID]; exists {
			return entities.NewValidationError("id", "quotation %s already exists", q.ID)
		}
		if _, ok := d.rfqs[q.RFQID]; !ok {
			return errors.Wrapf(entities.ErrNotFound, "rfq %s", q.RFQID)
		}
		if q.Status == "" {
			q.Status = entities.QuotationPending
		}
		q.RecalculateTotal()
		now := time.Now()
		q.Version = 1
		q.CreatedAt, q.UpdatedAt = now, now
		d.quotations[q.ID] = cloneQuotation(*q)
		return nil
	})
}

func (r quotationRepository) GetQuotation(_ context.Context, id string) (*entities.Quotation, error) {
	var found entities.Quotation
	err := r.s.read(func(d *state) error {
		q, ok := d.quotations[id]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "quotation %s", id)
		}
		found = cloneQuotation(q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

func (r quotationRepository) ListQuotationsByRFQ(_ context.Context, rfqID string) ([]entities.Quotation, error) {
	out := []entities.Quotation{}
	_ = r.s.read(func(d *state) error {
		for _, q := range d.quotations {
			if q.RFQID == rfqID {
				out = append(out, cloneQuotation(q))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r quotationRepository) SaveQuotation(_ context.Context, q *entities.Quotation) error {
	if err := q.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		stored, ok := d.quotations[q.ID]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "quotation %s", q.ID)
		}
		if stored.Version != q.Version {
			return errors.Wrapf(entities.ErrConcurrentUpdate, "quotation %s: version %d, stored %d", q.ID, q.Version, stored.Version)
		}
		q.Version++
		q.UpdatedAt = time.Now()
		d.quotations[q.ID] = cloneQuotation(*q)
		return nil
	})
}
