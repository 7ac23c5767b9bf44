package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

const (
	// CancelKeyPrefix is the prefix of cancel flag keys
	CancelKeyPrefix = "migration:cancel:"

	// DefaultCancelTTL outlives the longest stage so a raised flag is always seen
	DefaultCancelTTL = 6 * time.Hour
)

// CancelFlag implements migration.CancelFlag with one key per job
type CancelFlag struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewCancelFlag creates a new Redis-backed cancel flag
func NewCancelFlag(client *redis.Client, log *logger.Logger) *CancelFlag {
	return &CancelFlag{
		client: client,
		ttl:    DefaultCancelTTL,
		logger: log.WithField("component", "cancel_flag"),
	}
}

// Cancel raises the flag for a job
func (f *CancelFlag) Cancel(ctx context.Context, jobID uuid.UUID) error {
	if err := f.client.Set(ctx, cancelKey(jobID), "1", f.ttl).Err(); err != nil {
		return fmt.Errorf("failed to raise cancel flag: %w", err)
	}
	f.logger.Info("cancel requested", "job_id", jobID)
	return nil
}

// IsCancelled reports whether the flag is raised
func (f *CancelFlag) IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	n, err := f.client.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return n > 0, nil
}

// Clear lowers the flag
func (f *CancelFlag) Clear(ctx context.Context, jobID uuid.UUID) error {
	if err := f.client.Del(ctx, cancelKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cancel flag: %w", err)
	}
	return nil
}

func cancelKey(jobID uuid.UUID) string {
	return CancelKeyPrefix + jobID.String()
}
