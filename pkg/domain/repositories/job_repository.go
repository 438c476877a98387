package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// JobRepository provides access to jobs
type JobRepository interface {
	GetJob(ctx context.Context, id string) (*entities.Job, error)
	ListJobs(ctx context.Context) ([]*entities.Job, error)
	CreateJob(ctx context.Context, job *entities.Job) error
	// SaveJob writes the job if its stored version still equals job.Version
	// and bumps the version; otherwise it returns ErrConcurrentUpdate.
	SaveJob(ctx context.Context, job *entities.Job) error
}
