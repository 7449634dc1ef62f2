package prediction

import (
	"context"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

// SubmitInput carries one generation request to the external service.
// Exactly one of Prompt or SourceURL is set: a prompt for scene generation,
// a source media URL for an upscale pass.
type SubmitInput struct {
	Model           string
	Prompt          string
	SourceURL       string
	DurationSeconds float64
}

// PollResult is the service's view of a submitted prediction.
type PollResult struct {
	Status models.PredictionStatus
	Output string
	Error  string
}

// Gateway is the boundary to the external asynchronous prediction service.
// Submit returns an opaque handle; Poll reads current status by handle.
type Gateway interface {
	Submit(ctx context.Context, input *SubmitInput) (string, error)
	Poll(ctx context.Context, predictionID string) (*PollResult, error)
}
