package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// importStage writes a stage bundle into the document store chunk by chunk.
// Failed records are quarantined and written as the remaining artifact;
// the stage completes only when nothing remains.
func (r *Runner) importStage(ctx context.Context, job *Job, stage Stage) error {
	name := stage.Artifact()
	if err := r.artifacts.MarkConsumed(ctx, job.ID, name); err != nil {
		return fatal(stage, fmt.Errorf("failed to consume %s: %w", name, err))
	}

	records, err := r.loadImportSource(ctx, job, name)
	if err != nil {
		return fatal(stage, err)
	}

	cursor := Cursor{Stage: stage, Attempt: 1}
	if job.Cursor != nil && job.Cursor.Stage == stage {
		cursor = *job.Cursor
	}

	if stage == StageImportDaybook {
		if err := r.ensurePrerequisites(ctx, job.Settings); err != nil {
			return fatal(stage, fmt.Errorf("%w: %v", ErrPrerequisite, err))
		}
		job, records, err = r.importOpening(ctx, job, cursor, records)
		if err != nil {
			return fatal(stage, err)
		}
	}

	job, err = r.importChunks(ctx, job, cursor, records)
	if err != nil {
		return err
	}

	remaining := failedRecords(job, stage, cursor.Attempt)
	data, err := ledger.MarshalRecords(remaining)
	if err != nil {
		return fatal(stage, err)
	}
	if err := r.artifacts.Replace(ctx, job.ID, RemainingArtifact(name), data); err != nil {
		return fatal(stage, fmt.Errorf("failed to store remaining records: %w", err))
	}

	if len(remaining) > 0 {
		updated, err := r.repo.Update(ctx, job.ID, func(j *Job) error {
			if err := j.transition(StateNeedsResolution); err != nil {
				return fmt.Errorf("%w: %v", ErrStateConflict, err)
			}
			j.FailedStage = stage
			j.Status = fmt.Sprintf("%d records need resolution", len(remaining))
			return nil
		})
		if err != nil {
			return err
		}
		r.logger.Warn("import finished with failures",
			"job_id", job.ID, "stage", stage, "attempt", cursor.Attempt, "remaining", len(remaining))
		r.publish(ctx, updated, stage, updated.State, updated.Status, len(records), len(records))
		return nil
	}

	if stage == StageImportDaybook {
		if err := r.docs.SetField(ctx, "Price List", ledger.PriceListName, "enabled", 0); err != nil {
			r.logger.Error("failed to disable price list", "job_id", job.ID, "error", err)
		}
	}

	return r.complete(ctx, job, stage, func(j *Job) {
		j.clearStageErrors(stage)
		j.Cursor = nil
		j.Status = fmt.Sprintf("%d records imported", len(records))
	})
}

// loadImportSource prefers the records left over by the previous attempt
func (r *Runner) loadImportSource(ctx context.Context, job *Job, name string) ([]ledger.Record, error) {
	data, err := r.artifacts.Load(ctx, job.ID, RemainingArtifact(name))
	if errors.Is(err, ErrArtifactNotFound) {
		data, err = r.artifacts.Load(ctx, job.ID, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	records, err := ledger.UnmarshalRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return records, nil
}

// importOpening imports the opening posting ahead of every voucher and
// returns the records that follow it. Its failure aborts the stage.
func (r *Runner) importOpening(ctx context.Context, job *Job, cursor Cursor, records []ledger.Record) (*Job, []ledger.Record, error) {
	if len(records) == 0 || !records[0].IsOpening() {
		return job, records, nil
	}
	opening, rest := records[0], records[1:]
	if job.OpeningImported {
		return job, rest, nil
	}

	r.publish(ctx, job, cursor.Stage, job.State, "Importing opening balances", 0, len(rest))
	if err := r.importRecord(ctx, opening, job.Settings); err != nil {
		entry := newErrorEntry(cursor, opening, err)
		if _, uerr := r.repo.Update(context.WithoutCancel(ctx), job.ID, func(j *Job) error {
			j.ErrorLog = append(j.ErrorLog, entry)
			return nil
		}); uerr != nil {
			r.logger.Error("failed to log opening failure", "job_id", job.ID, "error", uerr)
		}
		return job, nil, fmt.Errorf("%w: %v", ErrOpeningFailed, err)
	}

	updated, err := r.repo.Update(ctx, job.ID, func(j *Job) error {
		j.OpeningImported = true
		return nil
	})
	if err != nil {
		return job, nil, err
	}
	return updated, rest, nil
}

// importChunks walks records from the cursor in chunks. After each chunk
// the cursor and the chunk's error entries are persisted in one update.
func (r *Runner) importChunks(ctx context.Context, job *Job, cursor Cursor, records []ledger.Record) (*Job, error) {
	stage := cursor.Stage
	size := job.Settings.ChunkSize
	if size <= 0 {
		size = ledger.DefaultChunkSize
	}

	start := cursor.Offset
	if start > len(records) || (start > 0 && records[start-1].Key() != cursor.LastKey) {
		r.logger.Warn("cursor does not match import source, restarting from the first record",
			"job_id", job.ID, "stage", stage, "offset", cursor.Offset, "last_key", cursor.LastKey)
		start = 0
	}

	for offset := start; offset < len(records); offset += size {
		cancelled, err := r.cancel.IsCancelled(ctx, job.ID)
		if err != nil {
			r.logger.Warn("failed to read cancel flag", "job_id", job.ID, "error", err)
		}
		if cancelled {
			r.logger.Info("import cancelled", "job_id", job.ID, "stage", stage, "offset", offset)
			return job, ErrCancelled
		}

		end := offset + size
		if end > len(records) {
			end = len(records)
		}

		var entries []ErrorEntry
		done := offset
		for _, rec := range records[offset:end] {
			if ctx.Err() != nil {
				break
			}
			if err := r.importRecord(ctx, rec, job.Settings); err != nil {
				if ctx.Err() != nil {
					break
				}
				entries = append(entries, newErrorEntry(cursor, rec, err))
				r.logger.Warn("record quarantined", "job_id", job.ID, "stage", stage, "key", rec.Key(), "error", err)
			}
			done++
		}

		if done > offset {
			cursor.Offset = done
			cursor.LastKey = records[done-1].Key()
		}
		next := cursor
		updated, err := r.repo.Update(context.WithoutCancel(ctx), job.ID, func(j *Job) error {
			if j.State != stage.RunningState() {
				return fmt.Errorf("%w: job is %s", ErrStateConflict, j.State)
			}
			j.Cursor = &next
			j.ErrorLog = append(j.ErrorLog, entries...)
			return nil
		})
		if err != nil {
			return job, err
		}
		job = updated

		if err := ctx.Err(); err != nil {
			return job, err
		}
		r.publish(ctx, job, stage, job.State, "Importing records", done, len(records))
	}
	return job, nil
}

// importRecord renders and inserts one record. A duplicate is already
// migrated and counts as success.
func (r *Runner) importRecord(ctx context.Context, rec ledger.Record, settings ledger.Settings) error {
	doc, err := r.registry.Render(rec, settings)
	if err != nil {
		return &RecordError{Key: rec.Key(), Err: err}
	}
	err = r.docs.Insert(ctx, doc, InsertOptions{SkipValidation: settings.SkipValidation})
	if errors.Is(err, ledger.ErrDuplicateDocument) {
		r.logger.Debug("document already imported", "doctype", doc.Doctype, "name", doc.Name)
		return nil
	}
	if err != nil {
		return &RecordError{Key: rec.Key(), Err: err}
	}
	return nil
}

func newErrorEntry(cursor Cursor, rec ledger.Record, err error) ErrorEntry {
	return ErrorEntry{
		Stage:     cursor.Stage,
		Attempt:   cursor.Attempt,
		Key:       rec.Key(),
		Record:    rec,
		Error:     err.Error(),
		CreatedAt: time.Now().UTC(),
	}
}

// failedRecords returns the records that failed in one attempt, once per key
func failedRecords(job *Job, stage Stage, attempt int) []ledger.Record {
	seen := make(map[string]bool)
	var out []ledger.Record
	for _, e := range job.ErrorLog {
		if e.Stage != stage || e.Attempt != attempt || seen[e.Key] {
			continue
		}
		// The opening failure aborts the stage and is never a remaining record
		if e.Record.IsOpening() {
			continue
		}
		seen[e.Key] = true
		out = append(out, e.Record)
	}
	return out
}
