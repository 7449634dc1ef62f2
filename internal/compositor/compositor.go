package compositor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/config"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/logger"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/pkg/utils"
)

const (
	// ArtifactValidity bounds how long a published artifact URL stays
	// fetchable; references are reissued on read, never made permanent.
	ArtifactValidity = 7 * 24 * time.Hour

	maxDownloadParallel = 4
	downloadTimeout     = 5 * time.Minute
)

// ProgressFunc reports compositing progress upward to whoever owns the
// job's progress record.
type ProgressFunc func(percent int, message string)

type Compositor struct {
	cfg        *config.CompositorConfig
	s3Cfg      *config.S3Config
	awsRepo    jobs.AWSRepository
	logger     logger.Logger
	httpClient *http.Client
}

func NewCompositor(cfg *config.CompositorConfig, s3Cfg *config.S3Config, awsRepo jobs.AWSRepository, log logger.Logger) *Compositor {
	return &Compositor{
		cfg:     cfg,
		s3Cfg:   s3Cfg,
		awsRepo: awsRepo,
		logger:  log,
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
	}
}

// Compose runs the full trim/transition/concatenate/encode pipeline for a
// multi-scene job and publishes the result, returning a presigned artifact
// URL. Scene order in the output always matches the scene order field,
// whatever order the generations completed in.
func (c *Compositor) Compose(ctx context.Context, job *models.Job, report ProgressFunc) (string, error) {
	if len(job.Scenes) < 2 {
		return "", fmt.Errorf("compose called with %d scenes; single-scene jobs finalize directly", len(job.Scenes))
	}
	if c.cfg.MaxCPUUsage > 0 {
		if ok, usage := utils.CheckCPUUsage(c.cfg.MaxCPUUsage); !ok {
			return "", &models.TransientInfraError{
				Op:  "compose admission",
				Err: fmt.Errorf("host busy, cpu at %.1f%%", usage),
			}
		}
	}
	if report == nil {
		report = func(int, string) {}
	}

	workDir, err := os.MkdirTemp(c.cfg.TempDir, "compose-"+job.JobID.String()+"-")
	if err != nil {
		return "", &models.TransientInfraError{Op: "workdir", Err: err}
	}
	defer os.RemoveAll(workDir)

	scenes := make([]*models.SceneSpec, len(job.Scenes))
	copy(scenes, job.Scenes)
	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].SceneOrder < scenes[j].SceneOrder
	})

	report(0, "downloading scene media")
	inputs, err := c.downloadScenes(ctx, scenes, workDir)
	if err != nil {
		return "", err
	}
	report(30, "building filter pipeline")

	pipeline, err := BuildPipeline(scenes, EncodeStage{
		Preset: c.cfg.Preset,
		CRF:    c.cfg.CRF,
	})
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(workDir, "final.mp4")
	report(40, "encoding")
	if err = runFFmpeg(ctx, pipeline.Args(inputs, outputPath)); err != nil {
		return "", err
	}

	report(90, "publishing artifact")
	artifactURL, err := c.publish(ctx, job, outputPath)
	if err != nil {
		return "", err
	}
	report(100, "published")
	return artifactURL, nil
}

func (c *Compositor) downloadScenes(ctx context.Context, scenes []*models.SceneSpec, workDir string) ([]string, error) {
	inputs := make([]string, len(scenes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxDownloadParallel)

	for i, scene := range scenes {
		i, scene := i, scene
		g.Go(func() error {
			dest := filepath.Join(workDir, fmt.Sprintf("scene_%03d.mp4", scene.SceneOrder))
			if err := c.downloadFile(gCtx, scene.OutputURL.String, dest); err != nil {
				return fmt.Errorf("scene %d download: %w", scene.SceneOrder, err)
			}
			inputs[i] = dest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &models.TransientInfraError{Op: "download", Err: err}
	}
	return inputs, nil
}

func (c *Compositor) downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err = io.Copy(file, resp.Body); err != nil {
		return err
	}
	return nil
}

func (c *Compositor) publish(ctx context.Context, job *models.Job, outputPath string) (string, error) {
	file, err := os.Open(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open encoded output: %w", err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat encoded output: %w", err)
	}

	key := fmt.Sprintf("artifacts/%s/final.mp4", job.JobID)
	if err = c.awsRepo.PutObject(ctx, &models.UploadInput{
		Bucket:   c.s3Cfg.OutputBucket,
		Key:      key,
		MimeType: "video/mp4",
		Size:     stat.Size(),
		Body:     file,
	}); err != nil {
		return "", &models.TransientInfraError{Op: "publish", Err: err}
	}

	artifactURL, err := c.awsRepo.GetPresignedURL(ctx, c.s3Cfg.OutputBucket, key, ArtifactValidity)
	if err != nil {
		// The object landed but can't be referenced; remove it so a retry
		// does not leave half-published copies behind.
		if rmErr := c.awsRepo.RemoveObject(ctx, c.s3Cfg.OutputBucket, key); rmErr != nil {
			c.logger.Warnf("Compose - cleanup of unreferenced artifact %s failed: %v", key, rmErr)
		}
		return "", &models.TransientInfraError{Op: "presign", Err: err}
	}
	c.logger.Infof("Compose - published artifact for job %s (%d bytes)", job.JobID, stat.Size())
	return artifactURL, nil
}

// Discard removes a published artifact whose job never completed, typically
// because the job was canceled while the encode was running.
func (c *Compositor) Discard(ctx context.Context, job *models.Job) error {
	key := fmt.Sprintf("artifacts/%s/final.mp4", job.JobID)
	if err := c.awsRepo.RemoveObject(ctx, c.s3Cfg.OutputBucket, key); err != nil {
		return fmt.Errorf("failed to remove artifact %s: %w", key, err)
	}
	c.logger.Infof("Compose - discarded artifact for job %s", job.JobID)
	return nil
}
