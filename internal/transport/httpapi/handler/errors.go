package handler

import (
	"errors"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/export"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	apperrors "github.com/kislikjeka/tallymigrate/internal/shared/errors"
)

// toAppError maps domain errors onto transport error codes
func toAppError(err error) *apperrors.AppError {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, migration.ErrJobNotFound):
		return apperrors.NotFound("migration job")
	case errors.Is(err, migration.ErrArtifactNotFound):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "artifact not found")
	case errors.Is(err, export.ErrNoDocuments):
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "nothing to export")

	case errors.Is(err, migration.ErrInvalidTransition):
		return apperrors.InvalidTransition("stage cannot start from the current state", err)
	case errors.Is(err, migration.ErrArtifactConsumed):
		return apperrors.ArtifactConsumed(err.Error())
	case errors.Is(err, migration.ErrStateConflict), errors.Is(err, migration.ErrNotRunning):
		return apperrors.Wrap(err, apperrors.ErrCodeConflict, "conflicting job state")

	case errors.Is(err, migration.ErrInvalidStage),
		errors.Is(err, migration.ErrInvalidInput),
		errors.Is(err, migration.ErrEmptyUpload),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrUnknownDoctype):
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "bad request")
	case errors.Is(err, ledger.ErrMissingControlAccount),
		errors.Is(err, ledger.ErrSameControlAccount),
		errors.Is(err, ledger.ErrInvalidChunkSize):
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid settings")
	}

	return apperrors.Internal("internal server error", err)
}
