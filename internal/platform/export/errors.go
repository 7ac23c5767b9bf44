package export

import "errors"

var (
	ErrUnknownFormat  = errors.New("unknown export format")
	ErrNoDocuments    = errors.New("no documents of the requested doctype")
	ErrUnknownDoctype = errors.New("doctype is not exported")
	ErrEmptyFile      = errors.New("export file has no header row")
	ErrMissingColumn  = errors.New("export file lacks a required column")
)
