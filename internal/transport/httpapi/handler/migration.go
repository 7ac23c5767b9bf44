package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	apperrors "github.com/kislikjeka/tallymigrate/internal/shared/errors"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// MigrationServiceInterface defines the job operations the API exposes
type MigrationServiceInterface interface {
	Create(ctx context.Context, settings ledger.Settings) (*migration.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*migration.Job, error)
	List(ctx context.Context) ([]*migration.Job, error)
	Errors(ctx context.Context, id uuid.UUID) ([]migration.ErrorEntry, error)
	Upload(ctx context.Context, id uuid.UUID, kind migration.InputKind, data []byte) error
	StartStage(ctx context.Context, id uuid.UUID, stage migration.Stage) (*migration.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Bundle(ctx context.Context, id uuid.UUID, name string) ([]ledger.Record, *migration.Job, error)
}

// MigrationHandler handles migration job requests
type MigrationHandler struct {
	service   MigrationServiceInterface
	defaults  ledger.Settings
	maxUpload int64
	logger    *logger.Logger
}

// HandlerConfig holds migration handler limits and defaults
type HandlerConfig struct {
	// MaxUploadMB caps the size of one uploaded export
	MaxUploadMB int
	// ChunkSize is used for jobs created without one
	ChunkSize int
}

// NewMigrationHandler creates a new migration handler
func NewMigrationHandler(service MigrationServiceInterface, cfg HandlerConfig, log *logger.Logger) *MigrationHandler {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 256
	}
	return &MigrationHandler{
		service:   service,
		defaults:  ledger.Settings{ChunkSize: cfg.ChunkSize},
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		logger:    log.WithField("handler", "migration"),
	}
}

// JobResponse represents a migration job
type JobResponse struct {
	ID              string            `json:"id"`
	Company         string            `json:"company"`
	Settings        ledger.Settings   `json:"settings"`
	State           string            `json:"state"`
	FailedStage     string            `json:"failed_stage,omitempty"`
	Status          string            `json:"status"`
	Cursor          *migration.Cursor `json:"cursor,omitempty"`
	OpeningImported bool              `json:"opening_imported"`
	ErrorCount      int               `json:"error_count"`
	Version         int64             `json:"version"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
}

// JobsListResponse represents the response for listing jobs
type JobsListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorsResponse lists the quarantined records of a job
type ErrorsResponse struct {
	Errors []migration.ErrorEntry `json:"errors"`
}

// CreateMigration handles POST /migrations. The body holds job settings as
// JSON or YAML.
func (h *MigrationHandler) CreateMigration(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	settings, err := ledger.ParseSettings(body, h.defaults)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.service.Create(r.Context(), *settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toJobResponse(job))
}

// ListMigrations handles GET /migrations
func (h *MigrationHandler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response := JobsListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toJobResponse(job))
	}
	respondWithJSON(w, http.StatusOK, response)
}

// GetMigration handles GET /migrations/{id}
func (h *MigrationHandler) GetMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toJobResponse(job))
}

// UploadFile handles PUT /migrations/{id}/files/{kind}. The body is the raw
// Tally export.
func (h *MigrationHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	kind := migration.InputKind(chi.URLParam(r, "kind"))

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondAppError(w, apperrors.New(apperrors.ErrCodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		respondWithError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	if err := h.service.Upload(r.Context(), id, kind, data); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"artifact": kind.Artifact(),
		"bytes":    len(data),
	})
}

// StartStage handles POST /migrations/{id}/stages/{stage}
func (h *MigrationHandler) StartStage(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	stage := migration.Stage(chi.URLParam(r, "stage"))

	job, err := h.service.StartStage(r.Context(), id, stage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, toJobResponse(job))
}

// CancelMigration handles POST /migrations/{id}/cancel
func (h *MigrationHandler) CancelMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

// GetErrors handles GET /migrations/{id}/errors
func (h *MigrationHandler) GetErrors(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.Errors(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []migration.ErrorEntry{}
	}
	respondWithJSON(w, http.StatusOK, ErrorsResponse{Errors: entries})
}

// fail maps err to a response, logging anything unexpected
func (h *MigrationHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	}
	respondAppError(w, appErr)
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

func toJobResponse(job *migration.Job) JobResponse {
	return JobResponse{
		ID:              job.ID.String(),
		Company:         job.Settings.Company,
		Settings:        job.Settings,
		State:           string(job.State),
		FailedStage:     string(job.FailedStage),
		Status:          job.Status,
		Cursor:          job.Cursor,
		OpeningImported: job.OpeningImported,
		ErrorCount:      len(job.ErrorLog),
		Version:         job.Version,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
}
