package usecase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

// artifactValidity mirrors the compositor's publish window; reissued
// references get the same bound.
const artifactValidity = 7 * 24 * time.Hour

type jobUC struct {
	cfg        *config.Config
	jobRepo    jobs.Repository
	redisRepo  jobs.RedisRepository
	awsRepo    jobs.AWSRepository
	dispatcher jobs.Dispatcher
	logger     logger.Logger
}

func NewJobUseCase(
	cfg *config.Config,
	jobRepo jobs.Repository,
	redisRepo jobs.RedisRepository,
	awsRepo jobs.AWSRepository,
	dispatcher jobs.Dispatcher,
	log logger.Logger,
) jobs.UseCase {
	return &jobUC{
		cfg:        cfg,
		jobRepo:    jobRepo,
		redisRepo:  redisRepo,
		awsRepo:    awsRepo,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// CreateJob validates the scene list, persists the job in queued state and
// dispatches the first scene. Config violations never reach the compositor;
// they are rejected here before anything is persisted.
func (u *jobUC) CreateJob(ctx context.Context, input *models.JobCreateInput) (*models.Job, error) {
	if err := utils.ValidateStruct(ctx, input); err != nil {
		u.logger.Errorf("CreateJob - ValidateStruct error: %v", err)
		return nil, fmt.Errorf("invalid input: %v", err)
	}
	if err := validateScenes(input.Scenes); err != nil {
		u.logger.Errorf("CreateJob - scene validation error: %v", err)
		return nil, err
	}

	job := &models.Job{
		Status:  models.JobStatusQueued,
		Upscale: input.Upscale,
	}
	for _, sceneInput := range input.Scenes {
		transitionType := sceneInput.TransitionType
		if transitionType == "" {
			transitionType = models.TransitionNone
		}
		job.Scenes = append(job.Scenes, &models.SceneSpec{
			SceneOrder:         sceneInput.SceneOrder,
			Prompt:             sceneInput.Prompt,
			DurationSeconds:    sceneInput.DurationSeconds,
			TrimStart:          sceneInput.TrimStart,
			TrimEnd:            sceneInput.TrimEnd,
			TransitionType:     transitionType,
			TransitionDuration: sceneInput.TransitionDuration,
		})
	}

	created, err := u.jobRepo.CreateJob(ctx, job)
	if err != nil {
		u.logger.Errorf("CreateJob - CreateJob error: %v", err)
		return nil, err
	}

	if err = u.dispatcher.StartJob(ctx, created); err != nil {
		// The job row already carries the failure; hand it back so the
		// caller sees the terminal state rather than a dangling error.
		u.logger.Errorf("CreateJob - StartJob error for job %s: %v", created.JobID, err)
		return u.jobRepo.GetJobByID(ctx, created.JobID)
	}
	return u.jobRepo.GetJobByID(ctx, created.JobID)
}

func (u *jobUC) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("invalid job id: cannot be empty")
	}
	job, err := u.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job not found")
		}
		u.logger.Errorf("GetJob - failed to fetch job: %v", err)
		return nil, fmt.Errorf("failed to fetch job: %v", err)
	}
	return job, nil
}

func (u *jobUC) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	if pq == nil {
		pq = &utils.Pagination{
			Page: 1,
			Size: 10,
		}
	}
	if pq.Page < 1 {
		pq.Page = 1
	}
	if pq.Size < 1 || pq.Size > 100 {
		pq.Size = 10
	}
	jobList, err := u.jobRepo.ListJobs(ctx, pq)
	if err != nil {
		u.logger.Errorf("ListJobs - failed to fetch jobs: %v", err)
		return nil, fmt.Errorf("failed to fetch jobs: %v", err)
	}
	return jobList, nil
}

// GetProgress serves the read model: the redis mirror when present, the
// durable row otherwise.
func (u *jobUC) GetProgress(ctx context.Context, jobID uuid.UUID) (*models.Progress, error) {
	if progress, err := u.redisRepo.GetProgress(ctx, jobID.String()); err == nil {
		return progress, nil
	} else if !errors.Is(err, redis.Nil) {
		u.logger.Warnf("GetProgress - redis read for job %s failed, using store: %v", jobID, err)
	}

	job, err := u.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &models.Progress{
		Stage:   job.ProgressStage,
		Percent: job.ProgressPercent,
		Message: job.ProgressMessage,
	}, nil
}

// GetArtifactURL reissues the artifact reference. Published URLs are only
// valid for a bounded window, so reads mint a fresh one instead of handing
// back whatever was stored at completion time.
func (u *jobUC) GetArtifactURL(ctx context.Context, jobID uuid.UUID) (string, error) {
	job, err := u.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != models.JobStatusCompleted || !job.FinalArtifactURL.Valid {
		return "", fmt.Errorf("job has no final artifact")
	}
	if len(job.Scenes) == 1 {
		// Single-scene artifacts live with the prediction service, not in
		// the output bucket; the stored reference is all there is.
		return job.FinalArtifactURL.String, nil
	}
	key := fmt.Sprintf("artifacts/%s/final.mp4", job.JobID)
	url, err := u.awsRepo.GetPresignedURL(ctx, u.cfg.S3.OutputBucket, key, artifactValidity)
	if err != nil {
		u.logger.Errorf("GetArtifactURL - presign error for job %s: %v", jobID, err)
		return "", fmt.Errorf("failed to presign artifact: %v", err)
	}
	return url, nil
}

// CancelJob marks a job failed with the caller's reason. In-flight external
// predictions are left to finish on their own; the orchestrator simply stops
// acting on updates once the job is terminal.
func (u *jobUC) CancelJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	if jobID == uuid.Nil {
		return fmt.Errorf("invalid job id: cannot be empty")
	}
	won, err := u.jobRepo.FailJob(ctx, jobID, "canceled: "+reason)
	if err != nil {
		u.logger.Errorf("CancelJob - FailJob error: %v", err)
		return fmt.Errorf("failed to cancel job: %v", err)
	}
	if !won {
		return fmt.Errorf("job is already finished")
	}
	if err = u.redisRepo.SetProgress(ctx, jobID.String(), &models.Progress{
		Stage:   models.JobStatusFailed,
		Percent: 0,
		Message: "canceled: " + reason,
	}); err != nil {
		u.logger.Warnf("CancelJob - SetProgress error for job %s: %v", jobID, err)
	}
	return nil
}

// validateScenes enforces the cross-field invariants the struct tags cannot
// express: orders form a 0-based permutation, trim windows are well-formed
// and transitions fit inside both adjacent trimmed scenes.
func validateScenes(scenes []*models.SceneSpecInput) error {
	ordered := make([]*models.SceneSpecInput, len(scenes))
	copy(ordered, scenes)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SceneOrder < ordered[j].SceneOrder
	})

	for i, scene := range ordered {
		if scene.SceneOrder != i {
			return &models.InvalidSceneConfigError{
				SceneOrder: scene.SceneOrder,
				Reason:     fmt.Sprintf("scene orders must form a 0-based sequence, expected %d", i),
			}
		}
		if scene.TrimEnd <= scene.TrimStart {
			return &models.InvalidSceneConfigError{
				SceneOrder: scene.SceneOrder,
				Reason:     fmt.Sprintf("trim_end %g must be greater than trim_start %g", scene.TrimEnd, scene.TrimStart),
			}
		}
		if scene.TrimEnd > scene.DurationSeconds {
			return &models.InvalidSceneConfigError{
				SceneOrder: scene.SceneOrder,
				Reason:     fmt.Sprintf("trim_end %g exceeds scene duration %g", scene.TrimEnd, scene.DurationSeconds),
			}
		}
		if scene.TransitionType != "" && !scene.TransitionType.Valid() {
			return &models.InvalidSceneConfigError{
				SceneOrder: scene.SceneOrder,
				Reason:     fmt.Sprintf("unknown transition type %q", scene.TransitionType),
			}
		}
		if i == len(ordered)-1 {
			continue
		}
		if scene.TransitionType == models.TransitionNone || scene.TransitionType == "" {
			continue
		}
		trimmed := scene.TrimEnd - scene.TrimStart
		nextTrimmed := ordered[i+1].TrimEnd - ordered[i+1].TrimStart
		shorter := trimmed
		if nextTrimmed < shorter {
			shorter = nextTrimmed
		}
		if scene.TransitionDuration > shorter {
			return &models.InvalidSceneConfigError{
				SceneOrder: scene.SceneOrder,
				Reason: fmt.Sprintf("transition duration %g exceeds shorter adjacent trimmed duration %g",
					scene.TransitionDuration, shorter),
			}
		}
	}
	return nil
}
