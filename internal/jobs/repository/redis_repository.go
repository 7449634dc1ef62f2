package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/jobs"
	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

const progressTTL = 24 * time.Hour

type jobRedisRepo struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewJobRedisRepo(redisClient *redis.Client, keyPrefix string) jobs.RedisRepository {
	return &jobRedisRepo{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
	}
}

func (r *jobRedisRepo) SetProgress(ctx context.Context, jobID string, progress *models.Progress) error {
	progressKey := r.keyPrefix + jobID

	pipe := r.redisClient.Pipeline()
	pipe.HSet(ctx, progressKey,
		"stage", string(progress.Stage),
		"percent", progress.Percent,
		"message", progress.Message,
		"eta", progress.ETA,
	)
	pipe.Expire(ctx, progressKey, progressTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set progress: %w", err)
	}
	return nil
}

func (r *jobRedisRepo) GetProgress(ctx context.Context, jobID string) (*models.Progress, error) {
	progressKey := r.keyPrefix + jobID

	fields, err := r.redisClient.HGetAll(ctx, progressKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if len(fields) == 0 {
		return nil, redis.Nil
	}
	percent, _ := strconv.Atoi(fields["percent"])
	return &models.Progress{
		Stage:   models.JobStatus(fields["stage"]),
		Percent: percent,
		Message: fields["message"],
		ETA:     fields["eta"],
	}, nil
}

func (r *jobRedisRepo) DeleteProgress(ctx context.Context, jobID string) error {
	if err := r.redisClient.Del(ctx, r.keyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}
