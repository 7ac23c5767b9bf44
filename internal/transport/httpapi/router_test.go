package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/export"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/handler"
	"github.com/kislikjeka/tallymigrate/internal/transport/httpapi/middleware"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// =============================================================================
// Mocks
// =============================================================================

type MockMigrationService struct {
	mock.Mock
}

func (m *MockMigrationService) Create(ctx context.Context, settings ledger.Settings) (*migration.Job, error) {
	args := m.Called(ctx, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migration.Job), args.Error(1)
}

func (m *MockMigrationService) Get(ctx context.Context, id uuid.UUID) (*migration.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migration.Job), args.Error(1)
}

func (m *MockMigrationService) List(ctx context.Context) ([]*migration.Job, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*migration.Job), args.Error(1)
}

func (m *MockMigrationService) Errors(ctx context.Context, id uuid.UUID) ([]migration.ErrorEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]migration.ErrorEntry), args.Error(1)
}

func (m *MockMigrationService) Upload(ctx context.Context, id uuid.UUID, kind migration.InputKind, data []byte) error {
	args := m.Called(ctx, id, kind, data)
	return args.Error(0)
}

func (m *MockMigrationService) StartStage(ctx context.Context, id uuid.UUID, stage migration.Stage) (*migration.Job, error) {
	args := m.Called(ctx, id, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*migration.Job), args.Error(1)
}

func (m *MockMigrationService) Cancel(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMigrationService) Bundle(ctx context.Context, id uuid.UUID, name string) ([]ledger.Record, *migration.Job, error) {
	args := m.Called(ctx, id, name)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]ledger.Record), args.Get(1).(*migration.Job), args.Error(2)
}

type stubSubscriber struct {
	updates []migration.Progress
}

func (s *stubSubscriber) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan migration.Progress, error) {
	ch := make(chan migration.Progress, len(s.updates))
	for _, p := range s.updates {
		ch <- p
	}
	close(ch)
	return ch, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("connection refused") }

// =============================================================================
// Helpers
// =============================================================================

type testServer struct {
	router  http.Handler
	service *MockMigrationService
	token   string
}

func newTestServer(t *testing.T, sub handler.ProgressSubscriber) *testServer {
	t.Helper()
	log := logger.Discard()
	service := new(MockMigrationService)
	jwtService := middleware.NewJWTService("test-secret")
	token, err := jwtService.GenerateToken("ops", time.Hour)
	require.NoError(t, err)

	if sub == nil {
		sub = &stubSubscriber{}
	}
	router := httpapi.NewRouter(httpapi.Config{
		Logger:           log,
		AllowedOrigins:   []string{"*"},
		MigrationHandler: handler.NewMigrationHandler(service, handler.HandlerConfig{MaxUploadMB: 1, ChunkSize: 250}, log),
		EventsHandler:    handler.NewEventsHandler(service, sub, log),
		HealthHandler:    handler.NewHealthHandler(map[string]handler.Pinger{"database": failingPinger{}}),
		DocsHandler:      handler.NewDocsHandler([]byte("openapi: 3.0.3\n")),
		JWTMiddleware:    middleware.JWTMiddleware(jwtService),
	})
	return &testServer{router: router, service: service, token: token}
}

func (s *testServer) do(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func newJob() *migration.Job {
	settings := ledger.DefaultSettings()
	settings.Company = "Acme Corp"
	return &migration.Job{
		ID:        uuid.New(),
		Settings:  settings,
		State:     migration.StateNew,
		Status:    "created",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// =============================================================================
// Tests
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health handler.HealthResponse
	decode(t, rec, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Checks["database"], "unhealthy")
}

func TestDocs(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi")

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/info", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var info map[string]string
	decode(t, rec, &info)
	assert.Equal(t, "/docs", info["docs_url"])
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/migrations", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateMigration(t *testing.T) {
	s := newTestServer(t, nil)
	job := newJob()
	s.service.On("Create", mock.Anything, mock.MatchedBy(func(st ledger.Settings) bool {
		return st.Company == "Acme Corp" && st.ChunkSize == 250
	})).Return(job, nil)

	rec := s.do(http.MethodPost, "/api/v1/migrations", []byte("company: Acme Corp\n"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handler.JobResponse
	decode(t, rec, &resp)
	assert.Equal(t, job.ID.String(), resp.ID)
	assert.Equal(t, "NEW", resp.State)
	s.service.AssertExpectations(t)
}

func TestCreateMigration_InvalidSettings(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/v1/migrations", []byte(`{"debtors_account":"X","creditors_account":"X"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.service.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetMigration_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()
	s.service.On("Get", mock.Anything, id).Return(nil, migration.ErrJobNotFound)

	rec := s.do(http.MethodGet, "/api/v1/migrations/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/migrations/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartStage_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"accepted", nil, http.StatusAccepted, ""},
		{"out of order", &migration.TransitionError{From: migration.StateNew, To: migration.StateMastersImporting}, http.StatusConflict, "INVALID_TRANSITION"},
		{"lost race", migration.ErrStateConflict, http.StatusConflict, "CONFLICT"},
		{"unknown stage", migration.ErrInvalidStage, http.StatusBadRequest, "BAD_REQUEST"},
		{"storage down", fmt.Errorf("dial tcp: refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			job := newJob()
			if tt.err == nil {
				s.service.On("StartStage", mock.Anything, job.ID, migration.StageProcessMasters).Return(job, nil)
			} else {
				s.service.On("StartStage", mock.Anything, job.ID, migration.StageProcessMasters).Return(nil, tt.err)
			}

			rec := s.do(http.MethodPost, "/api/v1/migrations/"+job.ID.String()+"/stages/process_masters", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var resp handler.ErrorResponse
				decode(t, rec, &resp)
				assert.Equal(t, tt.wantCode, resp.Code)
			}
		})
	}
}

func TestUploadFile(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()
	s.service.On("Upload", mock.Anything, id, migration.InputMasters, []byte("PK-data")).Return(nil)

	rec := s.do(http.MethodPut, "/api/v1/migrations/"+id.String()+"/files/masters", []byte("PK-data"))
	assert.Equal(t, http.StatusOK, rec.Code)
	s.service.AssertExpectations(t)
}

func TestUploadFile_TooLarge(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()

	// the test handler allows 1 MB
	rec := s.do(http.MethodPut, "/api/v1/migrations/"+id.String()+"/files/daybook", bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	s.service.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelMigration_NotRunning(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()
	s.service.On("Cancel", mock.Anything, id).Return(migration.ErrNotRunning)

	rec := s.do(http.MethodPost, "/api/v1/migrations/"+id.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetErrors(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New()
	entries := []migration.ErrorEntry{{
		Stage:   migration.StageImportMasters,
		Attempt: 1,
		Key:     "Nos",
		Record:  ledger.NewUOMRecord(ledger.UnitOfMeasure{Name: "Nos"}),
		Error:   "boom",
	}}
	s.service.On("Errors", mock.Anything, id).Return(entries, nil)

	rec := s.do(http.MethodGet, "/api/v1/migrations/"+id.String()+"/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.ErrorsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Nos", resp.Errors[0].Key)
}

func TestExportMigration_CSV(t *testing.T) {
	s := newTestServer(t, nil)
	job := newJob()
	records := []ledger.Record{
		ledger.NewJournalRecord(ledger.JournalPosting{
			SourceID:    "guid-1",
			PostingDate: "2024-04-01",
			Lines: []ledger.PostingLine{
				ledger.NewPostingLine("Cash", "", decimal.NewFromInt(-100)),
				ledger.NewPostingLine("Sales", "", decimal.NewFromInt(100)),
			},
		}),
	}
	s.service.On("Bundle", mock.Anything, job.ID, export.BundleDaybook).Return(records, job, nil)

	rec := s.do(http.MethodGet, "/api/v1/migrations/"+job.ID.String()+"/export?doctype=Journal+Entry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	table, err := export.ParseCSV(rec.Body, "Journal Entry")
	require.NoError(t, err)
	docs, err := table.Documents()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guid-1", docs[0].Name)
}

func TestExportMigration_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.New().String()

	rec := s.do(http.MethodGet, "/api/v1/migrations/"+id+"/export", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/migrations/"+id+"/export?doctype=Stock+Entry", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/migrations/"+id+"/export?doctype=Item&format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamProgress(t *testing.T) {
	job := newJob()
	sub := &stubSubscriber{updates: []migration.Progress{
		{JobID: job.ID, Stage: migration.StageImportMasters, Message: "Importing chunk 1", Step: 1, Total: 2},
	}}
	s := newTestServer(t, sub)
	s.service.On("Get", mock.Anything, job.ID).Return(job, nil)

	rec := s.do(http.MethodGet, "/api/v1/migrations/"+job.ID.String()+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: snapshot\n"))
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, "Importing chunk 1")
}
