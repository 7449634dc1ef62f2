package webhooks

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/prediction"
)

type Handlers interface {
	HandlePrediction() echo.HandlerFunc
}

// Sequencer is the slice of the scene sequencer the receiver drives. It is
// the same transition logic the status poller feeds; the receiver is only a
// faster messenger.
type Sequencer interface {
	HandlePredictionUpdate(ctx context.Context, job *models.Job, predictionID string, result *prediction.PollResult) error
}
