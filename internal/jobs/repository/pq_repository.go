package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

type jobRepo struct {
	db *sqlx.DB
}

func NewJobRepo(db *sqlx.DB) jobs.Repository {
	return &jobRepo{
		db: db,
	}
}

func (r *jobRepo) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	created := &models.Job{}
	if err = tx.QueryRowxContext(
		ctx,
		createJobQuery,
		models.JobStatusQueued,
		job.Upscale,
		"waiting for first scene",
	).StructScan(created); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	for _, scene := range job.Scenes {
		createdScene := &models.SceneSpec{}
		if err = tx.QueryRowxContext(
			ctx,
			createSceneQuery,
			created.JobID,
			scene.SceneOrder,
			scene.Prompt,
			scene.DurationSeconds,
			scene.TrimStart,
			scene.TrimEnd,
			scene.TransitionType,
			scene.TransitionDuration,
		).StructScan(createdScene); err != nil {
			return nil, fmt.Errorf("failed to create scene: %w", err)
		}
		created.Scenes = append(created.Scenes, createdScene)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job: %w", err)
	}
	return created, nil
}

func (r *jobRepo) GetJobByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(
		ctx,
		getJobByIDQuery,
		jobID,
	).StructScan(job); err != nil {
		return nil, fmt.Errorf("failed to get job by id: %w", err)
	}
	if err := r.attachScenes(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetJobByPredictionID(ctx context.Context, predictionID string) (*models.Job, error) {
	job := &models.Job{}
	if err := r.db.QueryRowxContext(
		ctx,
		getJobByPredictionIDQuery,
		predictionID,
	).StructScan(job); err != nil {
		return nil, fmt.Errorf("failed to get job by prediction id: %w", err)
	}
	if err := r.attachScenes(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	var totalCount int
	if err := r.db.GetContext(
		ctx,
		&totalCount,
		getTotalJobsQuery,
	); err != nil {
		return nil, fmt.Errorf("failed to get total jobs count: %w", err)
	}
	if totalCount == 0 {
		return &models.JobList{
			Jobs:       make([]*models.Job, 0),
			TotalCount: 0,
			Page:       0,
			PageSize:   0,
			HasMore:    utils.GetHasMore(pq.GetPage(), totalCount, pq.GetSize()),
		}, nil
	}
	rows, err := r.db.QueryxContext(
		ctx,
		listJobsQuery,
		pq.GetOffset(),
		pq.GetLimit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	var jobList = make([]*models.Job, 0, pq.GetSize())
	for rows.Next() {
		var job models.Job
		if err = rows.StructScan(&job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobList = append(jobList, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}
	for _, job := range jobList {
		if err = r.attachScenes(ctx, job); err != nil {
			return nil, err
		}
	}
	return &models.JobList{
		Jobs:       jobList,
		TotalCount: utils.GetTotalPages(totalCount, pq.GetSize()),
		Page:       pq.GetPage(),
		PageSize:   pq.GetSize(),
		HasMore:    utils.GetHasMore(pq.GetPage(), totalCount, pq.GetSize()),
	}, nil
}

func (r *jobRepo) GetPollableJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := r.db.QueryxContext(ctx, getPollableJobsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get pollable jobs: %w", err)
	}
	defer rows.Close()
	var jobList []*models.Job
	for rows.Next() {
		var job models.Job
		if err = rows.StructScan(&job); err != nil {
			return nil, fmt.Errorf("failed to scan pollable job: %w", err)
		}
		jobList = append(jobList, &job)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan pollable jobs: %w", err)
	}
	for _, job := range jobList {
		if err = r.attachScenes(ctx, job); err != nil {
			return nil, err
		}
	}
	return jobList, nil
}

func (r *jobRepo) CompareAndSetStatus(ctx context.Context, jobID uuid.UUID, from, to models.JobStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, casStatusQuery, jobID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to set job status: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count == 1, nil
}

func (r *jobRepo) CompleteJob(ctx context.Context, jobID uuid.UUID, from models.JobStatus, artifactURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx, completeJobQuery, jobID, from, artifactURL)
	if err != nil {
		return false, fmt.Errorf("failed to complete job: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count == 1, nil
}

func (r *jobRepo) FailJob(ctx context.Context, jobID uuid.UUID, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, failJobQuery, jobID, reason)
	if err != nil {
		return false, fmt.Errorf("failed to fail job: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count == 1, nil
}

func (r *jobRepo) SetActivePrediction(ctx context.Context, jobID, sceneID uuid.UUID, predictionID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()
	if _, err = tx.ExecContext(ctx, setActivePredictionQuery, jobID, predictionID); err != nil {
		return fmt.Errorf("failed to set active prediction: %w", err)
	}
	if _, err = tx.ExecContext(ctx, setScenePredictionQuery, sceneID, predictionID); err != nil {
		return fmt.Errorf("failed to set scene prediction: %w", err)
	}
	return tx.Commit()
}

func (r *jobRepo) SetSceneOutput(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx, setSceneOutputQuery, sceneID, outputURL)
	if err != nil {
		return false, fmt.Errorf("failed to set scene output: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count == 1, nil
}

func (r *jobRepo) SetSceneUpscaled(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error) {
	res, err := r.db.ExecContext(ctx, setSceneUpscaledQuery, sceneID, outputURL)
	if err != nil {
		return false, fmt.Errorf("failed to set upscaled scene output: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return count == 1, nil
}

func (r *jobRepo) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress *models.Progress) error {
	if _, err := r.db.ExecContext(
		ctx,
		updateProgressQuery,
		jobID,
		progress.Stage,
		progress.Percent,
		progress.Message,
	); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

func (r *jobRepo) attachScenes(ctx context.Context, job *models.Job) error {
	rows, err := r.db.QueryxContext(ctx, getScenesByJobIDQuery, job.JobID)
	if err != nil {
		return fmt.Errorf("failed to get scenes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var scene models.SceneSpec
		if err = rows.StructScan(&scene); err != nil {
			return fmt.Errorf("failed to scan scene: %w", err)
		}
		job.Scenes = append(job.Scenes, &scene)
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("failed to scan scenes: %w", err)
	}
	return nil
}
