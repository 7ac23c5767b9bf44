package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// ProgressChannel is the pub/sub channel progress updates are published on
const ProgressChannel = "tally_migration_progress_update"

// Notifier publishes job progress over Redis pub/sub
type Notifier struct {
	client *redis.Client
	logger *logger.Logger
}

// NewNotifier creates a new progress notifier
func NewNotifier(client *redis.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		client: client,
		logger: log.WithField("component", "notifier"),
	}
}

// Publish sends one progress update. Nobody listening is not an error.
func (n *Notifier) Publish(ctx context.Context, progress migration.Progress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if err := n.client.Publish(ctx, ProgressChannel, data).Err(); err != nil {
		n.logger.Error("publish failed", "job_id", progress.JobID, "error", err)
		return fmt.Errorf("failed to publish progress: %w", err)
	}
	return nil
}

// Subscribe streams the progress updates of one job until ctx is done.
// The returned channel is closed when the subscription ends.
func (n *Notifier) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan migration.Progress, error) {
	sub := n.client.Subscribe(ctx, ProgressChannel)
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to progress: %w", err)
	}

	out := make(chan migration.Progress)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var progress migration.Progress
				if err := json.Unmarshal([]byte(msg.Payload), &progress); err != nil {
					n.logger.Warn("dropping malformed progress message", "error", err)
					continue
				}
				if progress.JobID != jobID {
					continue
				}
				select {
				case out <- progress:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
