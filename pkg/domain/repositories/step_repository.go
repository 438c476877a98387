package repositories

import (
	"context"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// StepRepository provides access to the process steps of a job
type StepRepository interface {
	GetStep(ctx context.Context, id string) (*entities.Step, error)
	// ListStepsByJob returns every step of the job ordered by order index, then id
	ListStepsByJob(ctx context.Context, jobID string) ([]entities.Step, error)
	CreateStep(ctx context.Context, step *entities.Step) error
	// SaveSteps writes each step with a version check. Either all steps are
	// written or none; a version mismatch yields ErrConcurrentUpdate.
	SaveSteps(ctx context.Context, steps []entities.Step) error
}
