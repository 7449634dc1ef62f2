package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/compositor"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/retry"
)

// Composer produces the single final artifact for a multi-scene job. Discard
// removes a published artifact whose job never reached completed.
type Composer interface {
	Compose(ctx context.Context, job *models.Job, report compositor.ProgressFunc) (string, error)
	Discard(ctx context.Context, job *models.Job) error
}

// SceneSequencer advances jobs scene by scene. Every transition it applies is
// a compare-and-swap against the job store, so any number of concurrent
// observers of the same event (poller tick, webhook delivery) collapse to
// exactly one applied transition; the losers see a no-op.
type SceneSequencer struct {
	cfg       *config.Config
	jobRepo   jobs.Repository
	redisRepo jobs.RedisRepository
	gateway   prediction.Gateway
	composer  Composer
	logger    logger.Logger

	// composeSleep overrides the compositing retry backoff; tests inject an
	// instant one. Nil means the retry package default.
	composeSleep func(ctx context.Context, d time.Duration) error

	composeWG sync.WaitGroup
}

func NewSceneSequencer(
	cfg *config.Config,
	jobRepo jobs.Repository,
	redisRepo jobs.RedisRepository,
	gateway prediction.Gateway,
	composer Composer,
	log logger.Logger,
) *SceneSequencer {
	return &SceneSequencer{
		cfg:       cfg,
		jobRepo:   jobRepo,
		redisRepo: redisRepo,
		gateway:   gateway,
		composer:  composer,
		logger:    log,
	}
}

// StartJob moves a freshly created job from queued to running and dispatches
// its first scene. A lost swap means someone else already started it.
func (s *SceneSequencer) StartJob(ctx context.Context, job *models.Job) error {
	won, err := s.jobRepo.CompareAndSetStatus(ctx, job.JobID, models.JobStatusQueued, models.JobStatusRunning)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	scene := job.SceneByOrder(0)
	return s.dispatchScene(ctx, job, scene)
}

// HandlePredictionUpdate is the single entrypoint both completion paths feed.
// job must carry its scenes; predictionID identifies which delivery this is.
func (s *SceneSequencer) HandlePredictionUpdate(ctx context.Context, job *models.Job, predictionID string, result *prediction.PollResult) error {
	if job.Status.IsTerminal() {
		return nil
	}
	if !job.ActivePredictionID.Valid || job.ActivePredictionID.String != predictionID {
		// Stale delivery for a handle the job has already moved past.
		return nil
	}

	switch result.Status {
	case models.PredictionPending:
		return nil
	case models.PredictionFailed, models.PredictionCanceled:
		scene := job.SceneByPredictionID(predictionID)
		reason := result.Error
		if reason == "" {
			reason = "prediction " + string(result.Status)
		}
		order := -1
		if scene != nil {
			order = scene.SceneOrder
		}
		genErr := &models.SceneGenerationError{SceneOrder: order, Reason: reason}
		return s.failJob(ctx, job.JobID, genErr.Error())
	}

	scene := job.SceneByPredictionID(predictionID)
	if scene == nil {
		return nil
	}
	if job.Status == models.JobStatusUpscaling {
		return s.handleUpscaleSuccess(ctx, job, scene, result.Output)
	}
	return s.handleSceneSuccess(ctx, job, scene, result.Output)
}

// FailFromPollError terminates a job whose prediction handle can no longer be
// polled. Scene generation is not retried at this layer.
func (s *SceneSequencer) FailFromPollError(ctx context.Context, job *models.Job, pollErr error) error {
	return s.failJob(ctx, job.JobID, pollErr.Error())
}

// Wait blocks until all in-flight compositing runs have finished. Used on
// shutdown and in tests.
func (s *SceneSequencer) Wait() {
	s.composeWG.Wait()
}

func (s *SceneSequencer) handleSceneSuccess(ctx context.Context, job *models.Job, scene *models.SceneSpec, output string) error {
	applied, err := s.jobRepo.SetSceneOutput(ctx, scene.SceneID, output)
	if err != nil {
		return err
	}
	if !applied {
		// Duplicate delivery of the same success; the first one progressed
		// the job already.
		return nil
	}
	scene.OutputURL.String = output
	scene.OutputURL.Valid = true

	done := job.OutputCount()
	total := len(job.Scenes)
	if done < total {
		next := job.SceneByOrder(done)
		s.setProgress(ctx, job.JobID, &models.Progress{
			Stage:   models.JobStatusRunning,
			Percent: done * 80 / total,
			Message: "generating scenes",
		})
		return s.dispatchScene(ctx, job, next)
	}

	if job.Upscale {
		won, err := s.jobRepo.CompareAndSetStatus(ctx, job.JobID, models.JobStatusRunning, models.JobStatusUpscaling)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		job.Status = models.JobStatusUpscaling
		return s.dispatchUpscale(ctx, job, job.SceneByOrder(0))
	}
	return s.finalize(ctx, job, models.JobStatusRunning)
}

func (s *SceneSequencer) handleUpscaleSuccess(ctx context.Context, job *models.Job, scene *models.SceneSpec, output string) error {
	applied, err := s.jobRepo.SetSceneUpscaled(ctx, scene.SceneID, output)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	scene.OutputURL.String = output
	scene.OutputURL.Valid = true
	scene.Upscaled = true

	done := job.UpscaledCount()
	total := len(job.Scenes)
	if done < total {
		s.setProgress(ctx, job.JobID, &models.Progress{
			Stage:   models.JobStatusUpscaling,
			Percent: done * 80 / total,
			Message: "upscaling scenes",
		})
		return s.dispatchUpscale(ctx, job, job.SceneByOrder(done))
	}
	return s.finalize(ctx, job, models.JobStatusUpscaling)
}

// finalize applies the last-scene-success transition exactly once. Multi-scene
// jobs move to encoding and run the compositor; a single-scene job's sole
// output becomes the final artifact directly, without ever touching the
// compositor. All-scenes-generated triggers compositing; it is not itself
// completion.
func (s *SceneSequencer) finalize(ctx context.Context, job *models.Job, from models.JobStatus) error {
	if len(job.Scenes) == 1 {
		sole := job.SceneByOrder(0)
		won, err := s.jobRepo.CompleteJob(ctx, job.JobID, from, sole.OutputURL.String)
		if err != nil {
			return err
		}
		if won {
			s.setRedisProgress(ctx, job.JobID, &models.Progress{
				Stage:   models.JobStatusCompleted,
				Percent: 100,
				Message: "completed",
			})
			s.logger.Infof("Sequencer - job %s completed with single-scene artifact", job.JobID)
		}
		return nil
	}

	won, err := s.jobRepo.CompareAndSetStatus(ctx, job.JobID, from, models.JobStatusEncoding)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	s.setProgress(ctx, job.JobID, &models.Progress{
		Stage:   models.JobStatusEncoding,
		Percent: 80,
		Message: "compositing scenes",
	})

	// Compositing can take minutes; it must not hold a webhook request or a
	// poller tick hostage. The swap winner owns the run.
	s.composeWG.Add(1)
	go func() {
		defer s.composeWG.Done()
		s.composeAndComplete(context.Background(), job)
	}()
	return nil
}

func (s *SceneSequencer) composeAndComplete(ctx context.Context, job *models.Job) {
	report := func(percent int, message string) {
		s.setProgress(ctx, job.JobID, &models.Progress{
			Stage:   models.JobStatusEncoding,
			Percent: 80 + percent/5,
			Message: message,
		})
	}

	var artifactURL string
	err := retry.Run(ctx, func(ctx context.Context) error {
		url, composeErr := s.composer.Compose(ctx, job, report)
		if composeErr != nil {
			return composeErr
		}
		artifactURL = url
		return nil
	}, retry.Options{
		Sleep: s.composeSleep,
		OnRetry: func(attempt int, err error) {
			s.logger.Warnf("Sequencer - compositing attempt %d for job %s failed: %v", attempt, job.JobID, err)
			// Observers see a fresh attempt, not a stuck bar.
			s.setProgress(ctx, job.JobID, &models.Progress{
				Stage:   models.JobStatusEncoding,
				Percent: 0,
				Message: "retrying compositing",
			})
		},
	})
	if err != nil {
		compErr := &models.CompositingError{Reason: err.Error()}
		if failErr := s.failJob(ctx, job.JobID, compErr.Error()); failErr != nil {
			s.logger.Errorf("Sequencer - failed to mark job %s failed: %v", job.JobID, failErr)
		}
		return
	}

	won, err := s.jobRepo.CompleteJob(ctx, job.JobID, models.JobStatusEncoding, artifactURL)
	if err != nil {
		s.logger.Errorf("Sequencer - failed to complete job %s: %v", job.JobID, err)
		return
	}
	if !won {
		// The job turned terminal while the encode ran (a cancel, most
		// likely). The artifact has no owner and the mirror still shows
		// compositing progress; drop both and let reads fall back to the
		// terminal row.
		s.logger.Warnf("Sequencer - job %s turned terminal during compositing, discarding artifact", job.JobID)
		if discardErr := s.composer.Discard(ctx, job); discardErr != nil {
			s.logger.Errorf("Sequencer - discard for job %s failed: %v", job.JobID, discardErr)
		}
		s.deleteRedisProgress(ctx, job.JobID)
		return
	}
	s.setRedisProgress(ctx, job.JobID, &models.Progress{
		Stage:   models.JobStatusCompleted,
		Percent: 100,
		Message: "completed",
	})
	s.logger.Infof("Sequencer - job %s completed", job.JobID)
}

func (s *SceneSequencer) dispatchScene(ctx context.Context, job *models.Job, scene *models.SceneSpec) error {
	predictionID, err := s.gateway.Submit(ctx, &prediction.SubmitInput{
		Model:           s.cfg.Prediction.Model,
		Prompt:          scene.Prompt,
		DurationSeconds: scene.DurationSeconds,
	})
	if err != nil {
		s.logger.Errorf("Sequencer - scene %d submit for job %s failed: %v", scene.SceneOrder, job.JobID, err)
		genErr := &models.SceneGenerationError{SceneOrder: scene.SceneOrder, Reason: err.Error()}
		if failErr := s.failJob(ctx, job.JobID, genErr.Error()); failErr != nil {
			return failErr
		}
		return genErr
	}
	if err = s.jobRepo.SetActivePrediction(ctx, job.JobID, scene.SceneID, predictionID); err != nil {
		return err
	}
	scene.PredictionID.String = predictionID
	scene.PredictionID.Valid = true
	job.ActivePredictionID.String = predictionID
	job.ActivePredictionID.Valid = true
	s.logger.Infof("Sequencer - dispatched scene %d of job %s as prediction %s", scene.SceneOrder, job.JobID, predictionID)
	return nil
}

func (s *SceneSequencer) dispatchUpscale(ctx context.Context, job *models.Job, scene *models.SceneSpec) error {
	predictionID, err := s.gateway.Submit(ctx, &prediction.SubmitInput{
		Model:     s.cfg.Prediction.UpscaleModel,
		SourceURL: scene.OutputURL.String,
	})
	if err != nil {
		s.logger.Errorf("Sequencer - upscale %d submit for job %s failed: %v", scene.SceneOrder, job.JobID, err)
		genErr := &models.SceneGenerationError{SceneOrder: scene.SceneOrder, Reason: err.Error()}
		if failErr := s.failJob(ctx, job.JobID, genErr.Error()); failErr != nil {
			return failErr
		}
		return genErr
	}
	if err = s.jobRepo.SetActivePrediction(ctx, job.JobID, scene.SceneID, predictionID); err != nil {
		return err
	}
	scene.PredictionID.String = predictionID
	scene.PredictionID.Valid = true
	job.ActivePredictionID.String = predictionID
	job.ActivePredictionID.Valid = true
	return nil
}

func (s *SceneSequencer) failJob(ctx context.Context, jobID uuid.UUID, reason string) error {
	won, err := s.jobRepo.FailJob(ctx, jobID, reason)
	if err != nil {
		return err
	}
	if won {
		s.setRedisProgress(ctx, jobID, &models.Progress{
			Stage:   models.JobStatusFailed,
			Percent: 0,
			Message: reason,
		})
		s.logger.Warnf("Sequencer - job %s failed: %s", jobID, reason)
	}
	return nil
}

func (s *SceneSequencer) setProgress(ctx context.Context, jobID uuid.UUID, progress *models.Progress) {
	if err := s.jobRepo.UpdateProgress(ctx, jobID, progress); err != nil {
		s.logger.Errorf("Sequencer - UpdateProgress error for job %s: %v", jobID, err)
	}
	s.setRedisProgress(ctx, jobID, progress)
}

func (s *SceneSequencer) setRedisProgress(ctx context.Context, jobID uuid.UUID, progress *models.Progress) {
	if s.redisRepo == nil {
		return
	}
	if err := s.redisRepo.SetProgress(ctx, jobID.String(), progress); err != nil {
		s.logger.Errorf("Sequencer - SetProgress error for job %s: %v", jobID, err)
	}
}

func (s *SceneSequencer) deleteRedisProgress(ctx context.Context, jobID uuid.UUID) {
	if s.redisRepo == nil {
		return
	}
	if err := s.redisRepo.DeleteProgress(ctx, jobID.String()); err != nil {
		s.logger.Errorf("Sequencer - DeleteProgress error for job %s: %v", jobID, err)
	}
}
