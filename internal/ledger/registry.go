package ledger

import (
	"fmt"
	"sync"
)

// Writer renders one kind of record as a target document.
//
// Each record kind (account, party, journal, ...) has one writer; adding a
// new kind means registering a writer, not changing the import engine.
type Writer interface {
	// Kind returns the record kind this writer handles
	Kind() Kind

	// Write renders the record. Account and cost center names are
	// qualified with the company abbreviation from settings.
	Write(record Record, settings Settings) (*Document, error)
}

// Registry manages document writers
type Registry struct {
	writers map[Kind]Writer
	mu      sync.RWMutex
}

// NewRegistry creates an empty writer registry
func NewRegistry() *Registry {
	return &Registry{
		writers: make(map[Kind]Writer),
	}
}

// DefaultRegistry returns a registry with writers for every record kind
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, w := range []Writer{
		accountWriter{}, partyWriter{}, addressWriter{}, uomWriter{},
		itemWriter{}, journalWriter{}, invoiceWriter{},
	} {
		// Kinds are distinct, registration cannot fail
		_ = r.Register(w)
	}
	return r
}

// Register registers a writer for its kind.
// Returns an error if a writer for this kind is already registered
func (r *Registry) Register(w Writer) error {
	if w == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	kind := w.Kind()
	if !kind.IsValid() {
		return fmt.Errorf("invalid writer kind: %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.writers[kind]; exists {
		return fmt.Errorf("writer for kind '%s' already registered", kind)
	}

	r.writers[kind] = w
	return nil
}

// Get retrieves the writer for a kind
func (r *Registry) Get(kind Kind) (Writer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, exists := r.writers[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoWriter, kind)
	}
	return w, nil
}

// Has checks if a writer is registered for the kind
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.writers[kind]
	return exists
}

// Kinds returns all registered kinds
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.writers))
	for k := range r.writers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Render validates the record and renders it with the matching writer
func (r *Registry) Render(record Record, settings Settings) (*Document, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	w, err := r.Get(record.Kind)
	if err != nil {
		return nil, err
	}

	doc, err := w.Write(record, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s %q: %w", record.Kind, record.Key(), err)
	}
	return doc, nil
}
