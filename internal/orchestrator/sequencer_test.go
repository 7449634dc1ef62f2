package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/compositor"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

// fakeJobRepo is an in-memory store with the same compare-and-swap semantics
// as the postgres repository. Reads hand out deep copies, so concurrent
// observers in tests behave like independent row fetches.
type fakeJobRepo struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*models.Job
	progressLog []models.Progress
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[uuid.UUID]*models.Job)}
}

func cloneJob(job *models.Job) *models.Job {
	cp := *job
	cp.Scenes = make([]*models.SceneSpec, len(job.Scenes))
	for i, s := range job.Scenes {
		sc := *s
		cp.Scenes[i] = &sc
	}
	return &cp
}

func (r *fakeJobRepo) CreateJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneJob(job)
	stored.JobID = uuid.New()
	for _, s := range stored.Scenes {
		s.SceneID = uuid.New()
		s.JobID = stored.JobID
	}
	r.jobs[stored.JobID] = stored
	return cloneJob(stored), nil
}

func (r *fakeJobRepo) GetJobByID(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneJob(job), nil
}

func (r *fakeJobRepo) GetJobByPredictionID(ctx context.Context, predictionID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ActivePredictionID.Valid && job.ActivePredictionID.String == predictionID {
			return cloneJob(job), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeJobRepo) ListJobs(ctx context.Context, pq *utils.Pagination) (*models.JobList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := &models.JobList{TotalCount: len(r.jobs), Page: pq.GetPage(), PageSize: pq.GetSize()}
	for _, job := range r.jobs {
		list.Jobs = append(list.Jobs, cloneJob(job))
	}
	return list, nil
}

func (r *fakeJobRepo) GetPollableJobs(ctx context.Context) ([]*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Job
	for _, job := range r.jobs {
		pollable := job.Status == models.JobStatusRunning || job.Status == models.JobStatusUpscaling
		if pollable && job.ActivePredictionID.Valid {
			out = append(out, cloneJob(job))
		}
	}
	return out, nil
}

func (r *fakeJobRepo) CompareAndSetStatus(ctx context.Context, jobID uuid.UUID, from, to models.JobStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = to
	return true, nil
}

func (r *fakeJobRepo) CompleteJob(ctx context.Context, jobID uuid.UUID, from models.JobStatus, artifactURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != from {
		return false, nil
	}
	job.Status = models.JobStatusCompleted
	job.FinalArtifactURL = sql.NullString{String: artifactURL, Valid: true}
	job.ActivePredictionID = sql.NullString{}
	job.ProgressStage = models.JobStatusCompleted
	job.ProgressPercent = 100
	return true, nil
}

func (r *fakeJobRepo) FailJob(ctx context.Context, jobID uuid.UUID, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return false, nil
	}
	job.Status = models.JobStatusFailed
	job.Error = sql.NullString{String: reason, Valid: true}
	job.ActivePredictionID = sql.NullString{}
	return true, nil
}

func (r *fakeJobRepo) SetActivePrediction(ctx context.Context, jobID, sceneID uuid.UUID, predictionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return sql.ErrNoRows
	}
	job.ActivePredictionID = sql.NullString{String: predictionID, Valid: true}
	for _, s := range job.Scenes {
		if s.SceneID == sceneID {
			s.PredictionID = sql.NullString{String: predictionID, Valid: true}
		}
	}
	return nil
}

func (r *fakeJobRepo) SetSceneOutput(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		for _, s := range job.Scenes {
			if s.SceneID != sceneID {
				continue
			}
			if s.OutputURL.Valid {
				return false, nil
			}
			s.OutputURL = sql.NullString{String: outputURL, Valid: true}
			return true, nil
		}
	}
	return false, sql.ErrNoRows
}

func (r *fakeJobRepo) SetSceneUpscaled(ctx context.Context, sceneID uuid.UUID, outputURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		for _, s := range job.Scenes {
			if s.SceneID != sceneID {
				continue
			}
			if s.Upscaled {
				return false, nil
			}
			s.OutputURL = sql.NullString{String: outputURL, Valid: true}
			s.Upscaled = true
			return true, nil
		}
	}
	return false, sql.ErrNoRows
}

func (r *fakeJobRepo) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress *models.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return sql.ErrNoRows
	}
	if job.Status.IsTerminal() {
		return nil
	}
	job.ProgressStage = progress.Stage
	job.ProgressPercent = progress.Percent
	job.ProgressMessage = progress.Message
	r.progressLog = append(r.progressLog, *progress)
	return nil
}

func (r *fakeJobRepo) progressHistory() []models.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Progress, len(r.progressLog))
	copy(out, r.progressLog)
	return out
}

type fakeRedisRepo struct {
	mu      sync.Mutex
	set     []*models.Progress
	deleted []string
}

func (r *fakeRedisRepo) SetProgress(ctx context.Context, jobID string, progress *models.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = append(r.set, progress)
	return nil
}

func (r *fakeRedisRepo) GetProgress(ctx context.Context, jobID string) (*models.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.set) == 0 {
		return nil, sql.ErrNoRows
	}
	return r.set[len(r.set)-1], nil
}

func (r *fakeRedisRepo) DeleteProgress(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, jobID)
	return nil
}

func (r *fakeRedisRepo) deletedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.deleted))
	copy(out, r.deleted)
	return out
}

type fakeGateway struct {
	mu        sync.Mutex
	submits   []*prediction.SubmitInput
	submitErr error
	nextID    int
	results   map[string]*prediction.PollResult
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: make(map[string]*prediction.PollResult)}
}

func (g *fakeGateway) Submit(ctx context.Context, input *prediction.SubmitInput) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.submitErr != nil {
		return "", g.submitErr
	}
	g.nextID++
	cp := *input
	g.submits = append(g.submits, &cp)
	return fmt.Sprintf("pred-%d", g.nextID), nil
}

func (g *fakeGateway) Poll(ctx context.Context, predictionID string) (*prediction.PollResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if result, ok := g.results[predictionID]; ok {
		return result, nil
	}
	return &prediction.PollResult{Status: models.PredictionPending}, nil
}

func (g *fakeGateway) setResult(predictionID string, result *prediction.PollResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[predictionID] = result
}

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

type fakeComposer struct {
	mu       sync.Mutex
	calls    int
	discards int
	url      string
	errs     []error
	// gate, when set, blocks Compose until the test closes it.
	gate chan struct{}
}

func (c *fakeComposer) Compose(ctx context.Context, job *models.Job, report compositor.ProgressFunc) (string, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if report != nil {
		report(100, "uploading artifact")
	}
	return c.url, nil
}

func (c *fakeComposer) Discard(ctx context.Context, job *models.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discards++
	return nil
}

func (c *fakeComposer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeComposer) discardCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discards
}

func testConfig() *config.Config {
	return &config.Config{
		Prediction: config.PredictionConfig{
			Model:        "video-gen-v1",
			UpscaleModel: "upscale-v1",
		},
	}
}

func newTestSequencer(composer *fakeComposer) (*SceneSequencer, *fakeJobRepo, *fakeGateway) {
	repo := newFakeJobRepo()
	gateway := newFakeGateway()
	seq := NewSceneSequencer(testConfig(), repo, nil, gateway, composer, logger.NewNopLogger())
	// Tests never wait out real backoff.
	seq.composeSleep = func(ctx context.Context, d time.Duration) error { return nil }
	return seq, repo, gateway
}

func seedJob(t *testing.T, repo *fakeJobRepo, sceneCount int, upscale bool) *models.Job {
	t.Helper()
	job := &models.Job{Status: models.JobStatusQueued, Upscale: upscale}
	for i := 0; i < sceneCount; i++ {
		job.Scenes = append(job.Scenes, &models.SceneSpec{
			SceneOrder:         i,
			Prompt:             fmt.Sprintf("scene %d", i),
			DurationSeconds:    5,
			TrimStart:          0,
			TrimEnd:            4,
			TransitionType:     models.TransitionFade,
			TransitionDuration: 0.5,
		})
	}
	created, err := repo.CreateJob(context.Background(), job)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return created
}

// deliver simulates a completion-path observer: fetch the owning job fresh by
// handle and feed the update to the sequencer.
func deliver(t *testing.T, seq *SceneSequencer, repo *fakeJobRepo, predictionID string, result *prediction.PollResult) {
	t.Helper()
	job, err := repo.GetJobByPredictionID(context.Background(), predictionID)
	if err != nil {
		t.Fatalf("GetJobByPredictionID(%s): %v", predictionID, err)
	}
	if err = seq.HandlePredictionUpdate(context.Background(), job, predictionID, result); err != nil {
		t.Fatalf("HandlePredictionUpdate(%s): %v", predictionID, err)
	}
}

func succeeded(output string) *prediction.PollResult {
	return &prediction.PollResult{Status: models.PredictionSucceeded, Output: output}
}

func TestSequencerMultiSceneHappyPath(t *testing.T) {
	composer := &fakeComposer{url: "https://cdn.example.com/artifacts/final.mp4"}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 3, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if got := gateway.submitCount(); got != 1 {
		t.Fatalf("expected 1 submit after start, got %d", got)
	}

	for i := 1; i <= 3; i++ {
		deliver(t, seq, repo, fmt.Sprintf("pred-%d", i), succeeded(fmt.Sprintf("https://gen.example.com/clip-%d.mp4", i)))
	}
	seq.Wait()

	final, err := repo.GetJobByID(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJobByID: %v", err)
	}
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", final.Status, final.Error.String)
	}
	if final.FinalArtifactURL.String != composer.url {
		t.Errorf("expected artifact %q, got %q", composer.url, final.FinalArtifactURL.String)
	}
	if got := gateway.submitCount(); got != 3 {
		t.Errorf("expected one submit per scene, got %d", got)
	}
	if got := composer.callCount(); got != 1 {
		t.Errorf("expected exactly one compositing run, got %d", got)
	}
	if got := final.OutputCount(); got != len(final.Scenes) {
		t.Errorf("expected %d scene outputs, got %d", len(final.Scenes), got)
	}
	for i, submit := range gateway.submits {
		want := fmt.Sprintf("scene %d", i)
		if submit.Prompt != want {
			t.Errorf("submit %d: expected prompt %q, got %q", i, want, submit.Prompt)
		}
	}
}

func TestSequencerSingleSceneBypassesComposer(t *testing.T) {
	composer := &fakeComposer{url: "https://cdn.example.com/should-not-happen.mp4"}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 1, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/only.mp4"))
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.FinalArtifactURL.String != "https://gen.example.com/only.mp4" {
		t.Errorf("expected the sole scene output as artifact, got %q", final.FinalArtifactURL.String)
	}
	if composer.callCount() != 0 {
		t.Errorf("composer must never run for a single-scene job, ran %d times", composer.callCount())
	}
	if gateway.submitCount() != 1 {
		t.Errorf("expected 1 submit, got %d", gateway.submitCount())
	}
}

func TestSequencerSceneFailureStopsDispatch(t *testing.T) {
	composer := &fakeComposer{}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 3, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	deliver(t, seq, repo, "pred-2", &prediction.PollResult{
		Status: models.PredictionFailed,
		Error:  "content policy rejection",
	})
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.Error.String, "scene 1") || !strings.Contains(final.Error.String, "content policy rejection") {
		t.Errorf("expected error to name the failed scene and reason, got %q", final.Error.String)
	}
	if gateway.submitCount() != 2 {
		t.Errorf("no scene may be dispatched after a failure, got %d submits", gateway.submitCount())
	}
	if composer.callCount() != 0 {
		t.Errorf("composer must not run for a failed job")
	}

	// A late success for the failed handle lands on a terminal job: no-op.
	stale, _ := repo.GetJobByID(context.Background(), job.JobID)
	if err := seq.HandlePredictionUpdate(context.Background(), stale, "pred-2", succeeded("https://gen.example.com/late.mp4")); err != nil {
		t.Fatalf("late delivery: %v", err)
	}
	after, _ := repo.GetJobByID(context.Background(), job.JobID)
	if after.Status != models.JobStatusFailed {
		t.Errorf("terminal job must absorb late deliveries, got %s", after.Status)
	}
}

func TestSequencerDuplicateDeliveryIsNoOp(t *testing.T) {
	composer := &fakeComposer{url: "https://cdn.example.com/final.mp4"}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 3, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}

	// Webhook and poller each deliver the same success; the scene-output swap
	// lets only the first one advance the job.
	snapshot, _ := repo.GetJobByPredictionID(context.Background(), "pred-1")
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	if err := seq.HandlePredictionUpdate(context.Background(), snapshot, "pred-1", succeeded("https://gen.example.com/clip-1.mp4")); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}

	if got := gateway.submitCount(); got != 2 {
		t.Fatalf("duplicate delivery must not double-dispatch scene 1: got %d submits", got)
	}
}

func TestSequencerStaleHandleIgnored(t *testing.T) {
	composer := &fakeComposer{}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 2, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	stale, _ := repo.GetJobByPredictionID(context.Background(), "pred-1")
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))

	// The job has moved on to pred-2; a replay of pred-1 against the old
	// snapshot must not touch anything.
	if err := seq.HandlePredictionUpdate(context.Background(), stale, "pred-0-unknown", succeeded("x")); err != nil {
		t.Fatalf("stale delivery: %v", err)
	}
	current, _ := repo.GetJobByID(context.Background(), job.JobID)
	if current.ActivePredictionID.String != "pred-2" {
		t.Errorf("expected active handle pred-2, got %q", current.ActivePredictionID.String)
	}
	if gateway.submitCount() != 2 {
		t.Errorf("expected 2 submits, got %d", gateway.submitCount())
	}
}

func TestSequencerConcurrentFinalizeRunsComposerOnce(t *testing.T) {
	composer := &fakeComposer{url: "https://cdn.example.com/final.mp4"}
	seq, repo, _ := newTestSequencer(composer)
	job := seedJob(t, repo, 2, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))

	// Poller tick and webhook delivery observe the final success at the same
	// time, each with its own fetched row.
	result := succeeded("https://gen.example.com/clip-2.mp4")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		observed, err := repo.GetJobByPredictionID(context.Background(), "pred-2")
		if err != nil {
			t.Fatalf("fetch for observer %d: %v", i, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := seq.HandlePredictionUpdate(context.Background(), observed, "pred-2", result); err != nil {
				t.Errorf("concurrent delivery: %v", err)
			}
		}()
	}
	wg.Wait()
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if got := composer.callCount(); got != 1 {
		t.Errorf("exactly one observer may own the compositing run, got %d", got)
	}
}

func TestSequencerCompositingFatalErrorFailsJob(t *testing.T) {
	composer := &fakeComposer{errs: []error{errors.New("scene media corrupt")}}
	seq, repo, _ := newTestSequencer(composer)
	job := seedJob(t, repo, 2, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	deliver(t, seq, repo, "pred-2", succeeded("https://gen.example.com/clip-2.mp4"))
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.Error.String, "compositing failed") {
		t.Errorf("expected a compositing failure reason, got %q", final.Error.String)
	}
	if composer.callCount() != 1 {
		t.Errorf("a fatal compositor error must not be retried, got %d runs", composer.callCount())
	}
}

func TestSequencerUpscalePass(t *testing.T) {
	composer := &fakeComposer{url: "https://cdn.example.com/final.mp4"}
	seq, repo, gateway := newTestSequencer(composer)
	job := seedJob(t, repo, 2, true)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	deliver(t, seq, repo, "pred-2", succeeded("https://gen.example.com/clip-2.mp4"))

	mid, _ := repo.GetJobByID(context.Background(), job.JobID)
	if mid.Status != models.JobStatusUpscaling {
		t.Fatalf("expected upscaling after all scenes generated, got %s", mid.Status)
	}

	deliver(t, seq, repo, "pred-3", succeeded("https://gen.example.com/clip-1-up.mp4"))
	deliver(t, seq, repo, "pred-4", succeeded("https://gen.example.com/clip-2-up.mp4"))
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("expected completed, got %s (error=%s)", final.Status, final.Error.String)
	}
	if got := final.UpscaledCount(); got != 2 {
		t.Errorf("expected both scenes upscaled, got %d", got)
	}

	// Upscale submits reference the generated clip, not a prompt.
	if gateway.submitCount() != 4 {
		t.Fatalf("expected 4 submits, got %d", gateway.submitCount())
	}
	up := gateway.submits[2]
	if up.Model != "upscale-v1" {
		t.Errorf("expected upscale model, got %q", up.Model)
	}
	if up.SourceURL != "https://gen.example.com/clip-1.mp4" {
		t.Errorf("expected first clip as upscale source, got %q", up.SourceURL)
	}
	if up.Prompt != "" {
		t.Errorf("upscale submit must not carry a prompt, got %q", up.Prompt)
	}
}

func TestSequencerCompositingRetriesResetProgress(t *testing.T) {
	transient := func() error {
		return &models.TransientInfraError{Op: "compose admission", Err: errors.New("host busy")}
	}
	composer := &fakeComposer{
		url:  "https://cdn.example.com/final.mp4",
		errs: []error{transient(), transient()},
	}
	seq, repo, _ := newTestSequencer(composer)
	job := seedJob(t, repo, 2, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	deliver(t, seq, repo, "pred-2", succeeded("https://gen.example.com/clip-2.mp4"))
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusCompleted {
		t.Fatalf("expected recovery within the retry budget, got %s (error=%s)", final.Status, final.Error.String)
	}
	if composer.callCount() != 3 {
		t.Errorf("expected 3 compositing attempts, got %d", composer.callCount())
	}

	// Each failed attempt must land a reset in the store, so observers see a
	// fresh attempt instead of a stuck bar.
	resets := 0
	for _, p := range repo.progressHistory() {
		if p.Stage == models.JobStatusEncoding && p.Percent == 0 {
			resets++
		}
	}
	if resets != 2 {
		t.Errorf("expected 2 progress resets, got %d (history %+v)", resets, repo.progressHistory())
	}
}

func TestSequencerCancelDuringCompositingDiscardsArtifact(t *testing.T) {
	composer := &fakeComposer{
		url:  "https://cdn.example.com/final.mp4",
		gate: make(chan struct{}),
	}
	repo := newFakeJobRepo()
	gateway := newFakeGateway()
	redisRepo := &fakeRedisRepo{}
	seq := NewSceneSequencer(testConfig(), repo, redisRepo, gateway, composer, logger.NewNopLogger())
	seq.composeSleep = func(ctx context.Context, d time.Duration) error { return nil }
	job := seedJob(t, repo, 2, false)

	if err := seq.StartJob(context.Background(), job); err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	deliver(t, seq, repo, "pred-1", succeeded("https://gen.example.com/clip-1.mp4"))
	deliver(t, seq, repo, "pred-2", succeeded("https://gen.example.com/clip-2.mp4"))

	// The compose run is parked at the gate; a cancel lands while it encodes.
	if won, err := repo.FailJob(context.Background(), job.JobID, "canceled: operator request"); err != nil || !won {
		t.Fatalf("FailJob: won=%v err=%v", won, err)
	}
	close(composer.gate)
	seq.Wait()

	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("the cancel must stand, got %s", final.Status)
	}
	if final.FinalArtifactURL.Valid {
		t.Errorf("a canceled job must not carry an artifact, got %q", final.FinalArtifactURL.String)
	}
	if composer.discardCount() != 1 {
		t.Errorf("the orphaned artifact must be discarded, got %d discards", composer.discardCount())
	}
	deleted := redisRepo.deletedIDs()
	if len(deleted) != 1 || deleted[0] != job.JobID.String() {
		t.Errorf("the stale progress mirror must be dropped, got %v", deleted)
	}
}

func TestSequencerSubmitFailureFailsJob(t *testing.T) {
	composer := &fakeComposer{}
	seq, repo, gateway := newTestSequencer(composer)
	gateway.submitErr = errors.New("service unavailable")
	job := seedJob(t, repo, 2, false)

	err := seq.StartJob(context.Background(), job)
	if err == nil {
		t.Fatal("expected StartJob to surface the submit failure")
	}
	final, _ := repo.GetJobByID(context.Background(), job.JobID)
	if final.Status != models.JobStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.Error.String, "scene 0") {
		t.Errorf("expected error to name scene 0, got %q", final.Error.String)
	}
}
