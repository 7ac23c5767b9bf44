package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// ProgressSubscriber streams the progress updates of one job
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan migration.Progress, error)
}

// keepAliveInterval keeps idle proxies from closing the stream
const keepAliveInterval = 15 * time.Second

// EventsHandler serves job progress as server-sent events
type EventsHandler struct {
	service    MigrationServiceInterface
	subscriber ProgressSubscriber
	logger     *logger.Logger
}

// NewEventsHandler creates a new progress stream handler
func NewEventsHandler(service MigrationServiceInterface, subscriber ProgressSubscriber, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		service:    service,
		subscriber: subscriber,
		logger:     log.WithField("handler", "events"),
	}
}

// StreamProgress handles GET /migrations/{id}/events. The current job is
// sent first as a snapshot event, then every progress update.
func (h *EventsHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, toAppError(err))
		return
	}

	ctx := r.Context()
	updates, err := h.subscriber.Subscribe(ctx, id)
	if err != nil {
		h.logger.WithContext(ctx).Error("subscribe failed", "job_id", id, "error", err)
		respondWithError(w, http.StatusServiceUnavailable, "progress stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", toJobResponse(job)); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case progress, ok := <-updates:
			if !ok {
				return
			}
			if err := writeEvent(w, "progress", progress); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
