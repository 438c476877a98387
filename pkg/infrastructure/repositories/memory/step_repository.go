package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type stepRepository struct{ s *Store }

func (r stepRepository) GetStep(_ context.Context, id string) (*entities.Step, error) {
	var step entities.Step
	err := r.s.read(func(d *state) error {
		st, ok := d.steps[id]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "step %s", id)
		}
		step = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (r stepRepository) ListStepsByJob(_ context.Context, jobID string) ([]entities.Step, error) {
	steps := []entities.Step{}
	_ = r.s.read(func(d *state) error {
		for _, st := range d.steps {
			if st.JobID == jobID {
				steps = append(steps, st)
			}
		}
		return nil
	})
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].OrderIndex != steps[j].OrderIndex {
			return steps[i].OrderIndex < steps[j].OrderIndex
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

func (r stepRepository) CreateStep(_ context.Context, step *entities.Step) error {
	if err := step.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		if _, exists := d.steps[step.ID]; exists {
			return entities.NewValidationError("id", "step %s already exists", step.ID)
		}
		if _, ok := d.jobs[step.JobID]; !ok {
			return errors.Wrapf(entities.ErrNotFound, "job %s", step.JobID)
		}
		now := time.Now()
		step.Version = 1
		step.CreatedAt, step.UpdatedAt = now, now
		d.steps[step.ID] = *step
		return nil
	})
}

func (r stepRepository) SaveSteps(_ context.Context, steps []entities.Step) error {
	return r.s.write(func(d *state) error {
		for _, st := range steps {
			stored, ok := d.steps[st.ID]
			if !ok {
				return errors.Wrapf(entities.ErrNotFound, "step %s", st.ID)
			}
			if stored.Version != st.Version {
				return errors.Wrapf(entities.ErrConcurrentUpdate, "step %s: version %d, stored %d", st.ID, st.Version, stored.Version)
			}
		}
		now := time.Now()
		for _, st := range steps {
			st.Version++
			st.UpdatedAt = now
			d.steps[st.ID] = st
		}
		return nil
	})
}
