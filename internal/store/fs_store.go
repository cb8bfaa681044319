package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based
// persistence. Reports are stored in a directory structure:
// <baseDir>/jobs/<jobID>/report.json
//
// Thread-safety: this implementation uses atomic file operations (rename)
// and does not require locks. Multiple goroutines can safely call methods
// concurrently.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a new filesystem-based store.
// The baseDir will be created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
	}, nil
}

// JobDir returns the directory path for a given job ID. Exported so save
// callers can place exported stills next to the report.
func (fs *FSStore) JobDir(jobID string) string {
	return filepath.Join(fs.baseDir, "jobs", jobID)
}

// reportPath returns the path to the report.json file for a job.
func (fs *FSStore) reportPath(jobID string) string {
	return filepath.Join(fs.JobDir(jobID), "report.json")
}

// SaveReport atomically saves the report for the given job.
// Uses temp file + rename pattern to ensure atomicity.
func (fs *FSStore) SaveReport(jobID string, report *Report) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	jobDir := fs.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	// Write to temporary file first (atomic pattern)
	tempPath := fs.reportPath(jobID) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp report file: %w", err)
	}

	finalPath := fs.reportPath(jobID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename report file: %w", err)
	}

	slog.Debug("Report saved", "jobID", jobID, "path", finalPath)
	return nil
}

// LoadReport retrieves the report for the given job.
func (fs *FSStore) LoadReport(jobID string) (*Report, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	path := fs.reportPath(jobID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat report file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to deserialize report: %w", err)
	}

	slog.Debug("Report loaded", "jobID", jobID, "path", path)
	return &report, nil
}

// ListReports returns metadata for all stored reports.
func (fs *FSStore) ListReports() ([]ReportInfo, error) {
	jobsDir := filepath.Join(fs.baseDir, "jobs")

	if _, err := os.Stat(jobsDir); os.IsNotExist(err) {
		// No reports exist yet, return empty slice
		return []ReportInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat jobs directory: %w", err)
	}

	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	var infos []ReportInfo

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		jobID := entry.Name()
		if _, err := os.Stat(fs.reportPath(jobID)); os.IsNotExist(err) {
			continue // Skip directories without report.json
		}

		report, err := fs.LoadReport(jobID)
		if err != nil {
			slog.Warn("Failed to load report for listing", "jobID", jobID, "error", err)
			continue // Skip corrupted reports
		}

		infos = append(infos, report.ToInfo())
	}

	slog.Debug("Listed reports", "count", len(infos))
	return infos, nil
}

// DeleteReport removes the report and all associated artifacts.
func (fs *FSStore) DeleteReport(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	jobDir := fs.JobDir(jobID)

	if _, err := os.Stat(jobDir); os.IsNotExist(err) {
		return &NotFoundError{JobID: jobID}
	} else if err != nil {
		return fmt.Errorf("failed to stat job directory: %w", err)
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return fmt.Errorf("failed to remove job directory: %w", err)
	}

	slog.Debug("Report deleted", "jobID", jobID, "path", jobDir)
	return nil
}
