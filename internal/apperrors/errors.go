// Package apperrors collects the sentinel errors shared across the
// importer's layers so callers can branch with errors.Is instead of
// string matching.
package apperrors

import "errors"

var (
	// ErrArchiveInvalid is raised by the archive reader on a malformed ZIP
	// or a missing required entry.
	ErrArchiveInvalid = errors.New("archive invalid")

	// ErrEntryNotFound is raised when a requested archive entry is absent.
	// Callers treat this as "zero rows for this table", not a failure.
	ErrEntryNotFound = errors.New("archive entry not found")

	// ErrMetadataInvalid is raised when meta.csv is missing a required key
	// or a key fails to parse.
	ErrMetadataInvalid = errors.New("metadata invalid")

	// ErrDuplicateJob is raised when prepare is called for an
	// (extract_number, extract_type) pair that already completed.
	ErrDuplicateJob = errors.New("duplicate job")

	// ErrBatchBusy is raised when a batch is already running under another
	// worker's lock.
	ErrBatchBusy = errors.New("batch busy")

	// ErrBatchFailed marks a batch whose statement rolled back.
	ErrBatchFailed = errors.New("batch failed")

	// ErrJobNotFound is raised by getProgress/finalize for an unknown job.
	ErrJobNotFound = errors.New("job not found")

	// ErrStaleLock names a batch that has been running past the staleness
	// threshold. The sweeper (jobstore.SweepStaleLocks) resets such batches
	// and reports them as per-table counts; it does not return this error.
	ErrStaleLock = errors.New("stale batch lock")

	// ErrNotAllBatchesCompleted guards finalize against running early.
	ErrNotAllBatchesCompleted = errors.New("not all batches completed")

	// ErrUnknownColumn is raised when a CSV header names a column the
	// mapper doesn't recognize. Unknown columns are rejected, not
	// silently dropped.
	ErrUnknownColumn = errors.New("unknown column")
)
