// Package store persists analysis reports and per-pair score traces on the
// filesystem.
package store

// Store defines the interface for report persistence operations.
// Implementations must be thread-safe and handle concurrent access
// gracefully.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if a report doesn't exist (for Load/Delete)
//   - Return descriptive errors for I/O, serialization, or validation failures
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveReport atomically saves the report for the given job. An
	// existing report for this jobID is overwritten. Implementations
	// should use atomic write strategies (temp file + rename) so a crash
	// never leaves a half-written report behind.
	SaveReport(jobID string, report *Report) error

	// LoadReport retrieves the report for the given job.
	// Returns ErrNotFound if no report exists for this jobID.
	LoadReport(jobID string) (*Report, error)

	// ListReports returns metadata for all stored reports. The returned
	// slice may be empty. Returns an error if the report directory
	// cannot be scanned.
	ListReports() ([]ReportInfo, error)

	// DeleteReport removes the report and all associated artifacts for
	// the given job, including report.json, scores.jsonl, and any
	// exported stills under the job directory.
	// Returns ErrNotFound if no report exists for this jobID.
	DeleteReport(jobID string) error
}

// ErrNotFound is returned when a requested report does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing report error.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "report not found: " + e.JobID
	}
	return "report not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
