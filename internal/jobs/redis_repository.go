package jobs

import (
	"context"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

// RedisRepository is the low-latency progress read model. The postgres row
// stays the source of truth; the hash only mirrors it for UI polling.
type RedisRepository interface {
	SetProgress(ctx context.Context, jobID string, progress *models.Progress) error
	GetProgress(ctx context.Context, jobID string) (*models.Progress, error)
	DeleteProgress(ctx context.Context, jobID string) error
}
