package memory

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

type jobRepository struct{ s *Store }

func (r jobRepository) GetJob(_ context.Context, id string) (*entities.Job, error) {
	var job entities.Job
	err := r.s.read(func(d *state) error {
		j, ok := d.jobs[id]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "job %s", id)
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r jobRepository) ListJobs(_ context.Context) ([]*entities.Job, error) {
	var jobs []*entities.Job
	_ = r.s.read(func(d *state) error {
		for _, j := range d.jobs {
			j := j
			jobs = append(jobs, &j)
		}
		return nil
	})
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Number < jobs[j].Number })
	return jobs, nil
}

func (r jobRepository) CreateJob(_ context.Context, job *entities.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	return r.s.write(func(d *state) error {
		if _, exists := d.jobs[job.ID]; exists {
			return entities.NewValidationError("id", "job %s already exists", job.ID)
		}
		for _, other := range d.jobs {
			if other.Number == job.Number {
				return entities.NewValidationError("number", "job number %s already in use", job.Number)
			}
		}
		now := time.Now()
		job.Version = 1
		job.CreatedAt, job.UpdatedAt = now, now
		d.jobs[job.ID] = *job
		return nil
	})
}

func (r jobRepository) SaveJob(_ context.Context, job *entities.Job) error {
	return r.s.write(func(d *state) error {
		stored, ok := d.jobs[job.ID]
		if !ok {
			return errors.Wrapf(entities.ErrNotFound, "job %s", job.ID)
		}
		if stored.Version != job.Version {
			return errors.Wrapf(entities.ErrConcurrentUpdate, "job %s: version %d, stored %d", job.ID, job.Version, stored.Version)
		}
		job.Version++
		job.UpdatedAt = time.Now()
		d.jobs[job.ID] = *job
		return nil
	})
}
