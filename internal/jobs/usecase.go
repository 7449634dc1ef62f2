package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

type UseCase interface {
	CreateJob(ctx context.Context, input *models.JobCreateInput) (*models.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error)
	GetProgress(ctx context.Context, jobID uuid.UUID) (*models.Progress, error)
	GetArtifactURL(ctx context.Context, jobID uuid.UUID) (string, error)
	CancelJob(ctx context.Context, jobID uuid.UUID, reason string) error
}

// Dispatcher kicks off the first scene of a freshly created job. Implemented
// by the scene sequencer; declared here so the usecase does not depend on the
// orchestrator package.
type Dispatcher interface {
	StartJob(ctx context.Context, job *models.Job) error
}
