package tallyxml

import (
	"errors"
	"fmt"
)

// Archive errors
var (
	ErrNotZip         = errors.New("archive is not a zip file")
	ErrEmptyArchive   = errors.New("archive has no members")
	ErrUndecodable    = errors.New("no clean text encoding")
	ErrMalformedXML   = errors.New("malformed xml")
	ErrNoRootElement  = errors.New("document has no root element")
	ErrUnreadableFile = errors.New("unreadable archive")
)

// UnreadableArchiveError reports an export that cannot be turned into a tree.
// It is fatal for the stage that reads it.
type UnreadableArchiveError struct {
	Reason string
	Err    error
}

func (e *UnreadableArchiveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unreadable archive: %s: %v", e.Reason, e.Err)
	}
	return "unreadable archive: " + e.Reason
}

func (e *UnreadableArchiveError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnreadableFile}
	}
	return []error{ErrUnreadableFile, e.Err}
}

func unreadable(reason string, err error) error {
	return &UnreadableArchiveError{Reason: reason, Err: err}
}
