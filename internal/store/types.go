package store

import "time"

// AnalysisConfig echoes the effective configuration an analysis ran with.
// It is persisted alongside the results so a stored report documents how it
// was produced and can be re-thresholded without recomputation.
// Lives here rather than in the analyze package to avoid import cycles with
// the server package.
type AnalysisConfig struct {
	Input     string  `json:"input"`
	Raw       bool    `json:"raw,omitempty"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FPS       float64 `json:"fps"`
	Threshold float64 `json:"threshold"`
	BlockSize int     `json:"blockSize"`
	Vectorize bool    `json:"vectorize"`
	Parallel  int     `json:"parallel"`
	MaxFrames int     `json:"maxFrames,omitempty"`
	Window    int     `json:"window,omitempty"`
	Save      bool    `json:"save,omitempty"`
	MaxSave   int     `json:"maxSave,omitempty"`
	OutDir    string  `json:"outDir,omitempty"`
}

// Stats carries the timing and throughput numbers of one analysis run.
type Stats struct {
	// Frames is the number of frames ingested; Pairs is Frames-1, or 0
	// for sequences too short to compare.
	Frames int `json:"frames"`
	Pairs  int `json:"pairs"`

	// KeyframeCount and KeyframeRatio describe the selection outcome.
	KeyframeCount int     `json:"keyframeCount"`
	KeyframeRatio float64 `json:"keyframeRatio"`

	// Per-stage wall time in seconds. ReadSeconds covers ingestion,
	// ScoreSeconds the difference engine, TotalSeconds the whole run
	// including export.
	ReadSeconds  float64 `json:"readSeconds"`
	ScoreSeconds float64 `json:"scoreSeconds"`
	TotalSeconds float64 `json:"totalSeconds"`

	// MPixelsPerSec is scoring throughput over logical pixels compared.
	MPixelsPerSec float64 `json:"mpixelsPerSec"`

	// Backend names the SAD kernel tier that scored the run; Workers is
	// the pool size used.
	Backend string `json:"backend"`
	Workers int    `json:"workers"`
}

// Report is the persistable result of one analysis run: the per-pair
// difference scores, the selected keyframe indices, the configuration that
// produced them, and run statistics.
//
// Scores are kept in full so keyframes can be re-selected at any other
// threshold as a pure function over the stored report. A mismatched-
// dimension pair appears as its sentinel score and survives the JSON round
// trip unchanged.
type Report struct {
	// JobID identifies the run. Set by the server; CLI runs writing a
	// report to an arbitrary path may leave it empty.
	JobID string `json:"jobId,omitempty"`

	Config    AnalysisConfig `json:"config"`
	Scores    []float64      `json:"scores"`
	Keyframes []int          `json:"keyframes"`
	Stats     Stats          `json:"stats"`

	// SavedPaths lists exported keyframe stills, if any were written.
	SavedPaths []string `json:"savedPaths,omitempty"`

	// Timestamp records when the report was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewReport assembles a report from run results, stamping it with the
// current time.
func NewReport(jobID string, config AnalysisConfig, scores []float64, keyframes []int, stats Stats) *Report {
	return &Report{
		JobID:     jobID,
		Config:    config,
		Scores:    scores,
		Keyframes: keyframes,
		Stats:     stats,
		Timestamp: time.Now(),
	}
}

// ReportInfo contains metadata about a stored report without the full score
// arrays. Used for listing reports efficiently.
type ReportInfo struct {
	JobID         string    `json:"jobId"`
	Input         string    `json:"input"`
	Frames        int       `json:"frames"`
	KeyframeCount int       `json:"keyframeCount"`
	Threshold     float64   `json:"threshold"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToInfo converts a full Report to its listing metadata.
func (r *Report) ToInfo() ReportInfo {
	return ReportInfo{
		JobID:         r.JobID,
		Input:         r.Config.Input,
		Frames:        r.Stats.Frames,
		KeyframeCount: r.Stats.KeyframeCount,
		Threshold:     r.Config.Threshold,
		Timestamp:     r.Timestamp,
	}
}

// Validate checks that the report is internally consistent.
// Returns an error if any required field is missing or invalid.
func (r *Report) Validate() error {
	if r.Config.Input == "" {
		return &ValidationError{Field: "Config.Input", Reason: "cannot be empty"}
	}
	if r.Config.Width <= 0 {
		return &ValidationError{Field: "Config.Width", Reason: "must be positive"}
	}
	if r.Config.Height <= 0 {
		return &ValidationError{Field: "Config.Height", Reason: "must be positive"}
	}
	if r.Config.BlockSize <= 0 {
		return &ValidationError{Field: "Config.BlockSize", Reason: "must be positive"}
	}
	if r.Config.Threshold < 0 {
		return &ValidationError{Field: "Config.Threshold", Reason: "cannot be negative"}
	}
	if r.Stats.Frames < 0 {
		return &ValidationError{Field: "Stats.Frames", Reason: "cannot be negative"}
	}
	if r.Stats.Pairs != len(r.Scores) {
		return &ValidationError{Field: "Scores", Reason: "length must match Stats.Pairs"}
	}
	if r.Stats.KeyframeCount != len(r.Keyframes) {
		return &ValidationError{Field: "Keyframes", Reason: "length must match Stats.KeyframeCount"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a report validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}
