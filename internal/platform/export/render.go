package export

import (
	"fmt"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// Bundle names records are exported from
const (
	BundleMasters = "masters"
	BundleDaybook = "daybook"
)

var doctypeBundles = map[string]string{
	"Account":          BundleMasters,
	"Customer":         BundleMasters,
	"Supplier":         BundleMasters,
	"Address":          BundleMasters,
	"UOM":              BundleMasters,
	"Item":             BundleMasters,
	"Journal Entry":    BundleDaybook,
	"Sales Invoice":    BundleDaybook,
	"Purchase Invoice": BundleDaybook,
	OpeningEntry:       BundleDaybook,
}

// SourceBundle returns the processed bundle a doctype is exported from
func SourceBundle(doctype string) (string, error) {
	bundle, ok := doctypeBundles[doctype]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDoctype, doctype)
	}
	return bundle, nil
}

// Render turns records into target documents
func Render(registry *ledger.Registry, records []ledger.Record, settings ledger.Settings) ([]*ledger.Document, error) {
	docs := make([]*ledger.Document, 0, len(records))
	for _, rec := range records {
		doc, err := registry.Render(rec, settings)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s %q: %w", rec.Kind, rec.Key(), err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
