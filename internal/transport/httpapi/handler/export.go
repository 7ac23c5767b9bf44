package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/export"
)

// ExportMigration handles GET /migrations/{id}/export?doctype=…&format=csv|xlsx.
// Documents are rendered from the processed bundle the doctype belongs to.
func (h *MigrationHandler) ExportMigration(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	doctype := r.URL.Query().Get("doctype")
	if doctype == "" {
		respondWithError(w, http.StatusBadRequest, "doctype is required")
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	bundle, err := export.SourceBundle(doctype)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records, job, err := h.service.Bundle(r.Context(), id, bundle)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	docs, err := export.Render(ledger.DefaultRegistry(), records, job.Settings)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	table, err := export.Build(docs, doctype)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// render fully before writing headers so failures still get a JSON error
	var buf bytes.Buffer
	if err := export.Write(&buf, table, format); err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName(doctype)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
