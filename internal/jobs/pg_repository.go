package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

// Repository is the durable job store. State transitions are expressed as
// compare-and-swap updates returning whether the caller won the swap; a lost
// swap is a verified no-op, which is what keeps the poller and the webhook
// receiver safe when they race for the same event.
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) (*models.Job, error)
	GetJobByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	GetJobByPredictionID(ctx context.Context, predictionID string) (*models.Job, error)
	ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error)

	// GetPollableJobs returns jobs with a live prediction handle in a
	// pollable status (running or upscaling).
	GetPollableJobs(ctx context.Context) ([]*models.Job, error)

	CompareAndSetStatus(ctx context.Context, jobID uuid.UUID, from, to models.JobStatus) (bool, error)
	CompleteJob(ctx context.Context, jobID uuid.UUID, from models.JobStatus, artifactURL string) (bool, error)
	FailJob(ctx context.Context, jobID uuid.UUID, reason string) (bool, error)

	SetActivePrediction(ctx context.Context, jobID, sceneID uuid.UUID, predictionID string) error
	SetSceneOutput(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error)
	SetSceneUpscaled(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error)

	UpdateProgress(ctx context.Context, jobID uuid.UUID, progress *models.Progress) error
}
