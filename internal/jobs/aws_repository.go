package jobs

import (
	"context"
	"time"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

// AWSRepository is the artifact store. Published artifacts are referenced
// through time-bounded presigned URLs, never permanent ones.
type AWSRepository interface {
	PutObject(ctx context.Context, input *models.UploadInput) error
	GetPresignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	RemoveObject(ctx context.Context, bucket, key string) error
}
