package orchestrator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
)

// StatusPoller is the always-on completion path: a single periodic sweep over
// every in-flight prediction handle in the store. The webhook receiver is a
// latency optimization on top of it, never a replacement.
type StatusPoller struct {
	cfg       *config.PollerConfig
	jobRepo   jobs.Repository
	gateway   prediction.Gateway
	sequencer *SceneSequencer
	logger    logger.Logger
}

func NewStatusPoller(
	cfg *config.PollerConfig,
	jobRepo jobs.Repository,
	gateway prediction.Gateway,
	sequencer *SceneSequencer,
	log logger.Logger,
) *StatusPoller {
	return &StatusPoller{
		cfg:       cfg,
		jobRepo:   jobRepo,
		gateway:   gateway,
		sequencer: sequencer,
		logger:    log,
	}
}

// Run sweeps until the context is cancelled.
func (p *StatusPoller) Run(ctx context.Context) {
	p.logger.Infof("StatusPoller - sweeping every %s", p.cfg.Interval)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("StatusPoller - stopping")
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Errorf("StatusPoller - tick error: %v", err)
			}
		}
	}
}

// Tick queries the store for every pollable job and drives the sequencer with
// each handle's current status. The query goes to the store every time; no
// in-memory mirror that can drift. Jobs are swept independently: one job's
// error must never cancel or fail its siblings, so the group carries no
// shared cancellation.
func (p *StatusPoller) Tick(ctx context.Context) error {
	jobList, err := p.jobRepo.GetPollableJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobList) == 0 {
		return nil
	}

	g := &errgroup.Group{}
	g.SetLimit(p.cfg.Concurrency)
	for _, job := range jobList {
		job := job
		g.Go(func() error {
			predictionID := job.ActivePredictionID.String
			result, pollErr := p.gateway.Poll(ctx, predictionID)
			if pollErr != nil {
				if ctx.Err() != nil || errors.Is(pollErr, context.Canceled) {
					// The sweep was aborted, not the prediction; the next
					// tick re-observes the handle.
					return nil
				}
				p.logger.Errorf("StatusPoller - poll %s failed: %v", predictionID, pollErr)
				return p.sequencer.FailFromPollError(ctx, job, pollErr)
			}
			return p.sequencer.HandlePredictionUpdate(ctx, job, predictionID, result)
		})
	}
	return g.Wait()
}
