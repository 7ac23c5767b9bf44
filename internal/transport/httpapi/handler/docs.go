package handler

import (
	"net/http"
)

// DocsHandler serves the API description
type DocsHandler struct {
	spec []byte
}

// NewDocsHandler creates a new docs handler
func NewDocsHandler(spec []byte) *DocsHandler {
	return &DocsHandler{spec: spec}
}

// GetOpenAPISpec handles GET /docs
func (h *DocsHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}

// GetDocsInfo handles GET /docs/info
func (h *DocsHandler) GetDocsInfo(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"title":       "Tally Migration API",
		"version":     Version,
		"docs_url":    "/docs",
		"description": "Stage-driven migration of Tally exports with JWT operator authentication",
	})
}
