package migration_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
)

// =============================================================================
// In-memory Job Repository
// =============================================================================

type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*migration.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[uuid.UUID]*migration.Job)}
}

func cloneJob(j *migration.Job) *migration.Job {
	c := *j
	c.ErrorLog = append([]migration.ErrorEntry(nil), j.ErrorLog...)
	if j.Cursor != nil {
		cur := *j.Cursor
		c.Cursor = &cur
	}
	return &c
}

func (m *memJobs) Create(_ context.Context, job *migration.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*migration.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, migration.ErrJobNotFound
	}
	return cloneJob(j), nil
}

func (m *memJobs) List(_ context.Context) ([]*migration.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*migration.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memJobs) Update(_ context.Context, id uuid.UUID, fn func(job *migration.Job) error) (*migration.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, migration.ErrJobNotFound
	}
	work := cloneJob(j)
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Version++
	work.UpdatedAt = time.Now()
	m.jobs[id] = work
	return cloneJob(work), nil
}

// put stores a job directly, bypassing the transition table
func (m *memJobs) put(job *migration.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = cloneJob(job)
}

// =============================================================================
// In-memory Artifact Store
// =============================================================================

type memArtifacts struct {
	mu       sync.Mutex
	data     map[string][]byte
	consumed map[string]bool
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{data: make(map[string][]byte), consumed: make(map[string]bool)}
}

func artifactKey(id uuid.UUID, name string) string { return id.String() + "/" + name }

func (m *memArtifacts) Save(_ context.Context, id uuid.UUID, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumed[artifactKey(id, name)] {
		return migration.ErrArtifactConsumed
	}
	m.data[artifactKey(id, name)] = data
	return nil
}

func (m *memArtifacts) Replace(_ context.Context, id uuid.UUID, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[artifactKey(id, name)] = data
	return nil
}

func (m *memArtifacts) Load(_ context.Context, id uuid.UUID, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[artifactKey(id, name)]
	if !ok {
		return nil, migration.ErrArtifactNotFound
	}
	return data, nil
}

func (m *memArtifacts) MarkConsumed(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[artifactKey(id, name)]; !ok {
		return migration.ErrArtifactNotFound
	}
	m.consumed[artifactKey(id, name)] = true
	return nil
}

func (m *memArtifacts) records(t *testing.T, id uuid.UUID, name string) []ledger.Record {
	t.Helper()
	data, err := m.Load(context.Background(), id, name)
	require.NoError(t, err)
	records, err := ledger.UnmarshalRecords(data)
	require.NoError(t, err)
	return records
}

// =============================================================================
// In-memory Document Store
// =============================================================================

type memDocs struct {
	mu      sync.Mutex
	docs    map[string]*ledger.Document
	order   []string
	fail    map[string]error
	inserts int
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]*ledger.Document), fail: make(map[string]error)}
}

func docKey(doctype, name string) string { return doctype + "/" + name }

func (m *memDocs) Insert(_ context.Context, doc *ledger.Document, _ migration.InsertOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	key := docKey(doc.Doctype, doc.Name)
	if err, ok := m.fail[key]; ok {
		return err
	}
	if _, exists := m.docs[key]; exists {
		return ledger.ErrDuplicateDocument
	}
	m.docs[key] = doc
	m.order = append(m.order, key)
	return nil
}

func (m *memDocs) SetField(_ context.Context, doctype, name, field string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(doctype, name)]
	if !ok {
		return fmt.Errorf("%w: %s %s", ledger.ErrDocumentNotFound, doctype, name)
	}
	for i, f := range doc.Fields {
		if f.Name == field {
			doc.Fields[i].Value = value
			return nil
		}
	}
	doc.Fields = append(doc.Fields, ledger.Field{Name: field, Value: value})
	return nil
}

func (m *memDocs) has(doctype, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[docKey(doctype, name)]
	return ok
}

func (m *memDocs) field(doctype, name, field string) interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[docKey(doctype, name)]
	if !ok {
		return nil
	}
	v, _ := doc.Get(field)
	return v
}

func (m *memDocs) count(doctype string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.docs {
		if d.Doctype == doctype {
			n++
		}
	}
	return n
}

// =============================================================================
// Mock Dispatcher, Cancel Flag and Notifier
// =============================================================================

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Enqueue(ctx context.Context, job *migration.Job, stage migration.Stage) error {
	args := m.Called(ctx, job, stage)
	return args.Error(0)
}

type MockCancelFlag struct {
	mock.Mock
}

func (m *MockCancelFlag) Cancel(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockCancelFlag) IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCancelFlag) Clear(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// neverCancelled is a cancel flag that is never raised
func neverCancelled() *MockCancelFlag {
	flag := new(MockCancelFlag)
	flag.On("IsCancelled", mock.Anything, mock.Anything).Return(false, nil)
	flag.On("Clear", mock.Anything, mock.Anything).Return(nil)
	return flag
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []migration.Progress
}

func (n *recordingNotifier) Publish(_ context.Context, p migration.Progress) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, p)
	return nil
}

// =============================================================================
// Fixtures
// =============================================================================

type fixture struct {
	jobs      *memJobs
	artifacts *memArtifacts
	docs      *memDocs
	cancel    *MockCancelFlag
	notifier  *recordingNotifier
	runner    *migration.Runner
}

func newFixture(t *testing.T, cancel *MockCancelFlag, dir daybook.Directory) *fixture {
	t.Helper()
	f := &fixture{
		jobs:      newMemJobs(),
		artifacts: newMemArtifacts(),
		docs:      newMemDocs(),
		cancel:    cancel,
		notifier:  &recordingNotifier{},
	}
	f.runner = migration.NewRunner(f.jobs, f.artifacts, f.docs, dir, f.notifier, cancel,
		migration.RunnerConfig{StageTimeout: time.Minute}, testLogger())
	return f
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSettings() ledger.Settings {
	s := ledger.DefaultSettings()
	s.Company = "Acme Corp"
	return s
}

// newJob stores a job already in the given state
func (f *fixture) newJob(state migration.State, cursor *migration.Cursor, chunkSize int) *migration.Job {
	settings := testSettings()
	if chunkSize > 0 {
		settings.ChunkSize = chunkSize
	}
	job := &migration.Job{
		ID:        uuid.New(),
		Settings:  settings,
		State:     state,
		Cursor:    cursor,
		ErrorLog:  []migration.ErrorEntry{},
		CreatedAt: time.Now(),
	}
	f.jobs.put(job)
	return job
}

func (f *fixture) setFailedStage(t *testing.T, id uuid.UUID, stage migration.Stage) {
	t.Helper()
	_, err := f.jobs.Update(context.Background(), id, func(j *migration.Job) error {
		j.FailedStage = stage
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) storeBundle(t *testing.T, id uuid.UUID, name string, records []ledger.Record) {
	t.Helper()
	data, err := ledger.MarshalRecords(records)
	require.NoError(t, err)
	require.NoError(t, f.artifacts.Replace(context.Background(), id, name, data))
}

func (f *fixture) job(t *testing.T, id uuid.UUID) *migration.Job {
	t.Helper()
	job, err := f.jobs.GetByID(context.Background(), id)
	require.NoError(t, err)
	return job
}

func uomRecords(names ...string) []ledger.Record {
	records := make([]ledger.Record, 0, len(names))
	for _, n := range names {
		records = append(records, ledger.NewUOMRecord(ledger.UnitOfMeasure{Name: n}))
	}
	return records
}

func journal(guid string, amount string) ledger.Record {
	amt := decimal.RequireFromString(amount)
	return ledger.NewJournalRecord(ledger.JournalPosting{
		SourceID:    guid,
		PostingDate: "2024-04-01",
		VoucherType: "Journal Entry",
		Lines: []ledger.PostingLine{
			{Account: "Cash", CostCenter: "Main - AC", Debit: amt},
			{Account: "Sales", CostCenter: "Main - AC", Credit: amt},
		},
	})
}

func opening(amount string) ledger.Record {
	rec := journal(ledger.OpeningKey, amount)
	rec.Journal.IsOpening = true
	rec.Journal.Title = ledger.OpeningTitle
	rec.Journal.VoucherType = ledger.OpeningVoucherType
	return rec
}

var errTarget = errors.New("target rejected document")
