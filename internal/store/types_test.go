package store

import (
	"errors"
	"testing"
	"time"
)

func validReport() *Report {
	return &Report{
		JobID: "job-1",
		Config: AnalysisConfig{
			Input:     "clip.mp4",
			Width:     320,
			Height:    240,
			FPS:       30,
			Threshold: 2.0,
			BlockSize: 8192,
		},
		Scores:    []float64{1.0, 2.5},
		Keyframes: []int{2},
		Stats: Stats{
			Frames:        3,
			Pairs:         2,
			KeyframeCount: 1,
		},
		Timestamp: time.Now(),
	}
}

func TestReport_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Report)
		wantErr bool
	}{
		{"valid", func(r *Report) {}, false},
		{"empty input", func(r *Report) { r.Config.Input = "" }, true},
		{"zero width", func(r *Report) { r.Config.Width = 0 }, true},
		{"negative height", func(r *Report) { r.Config.Height = -1 }, true},
		{"zero block size", func(r *Report) { r.Config.BlockSize = 0 }, true},
		{"negative threshold", func(r *Report) { r.Config.Threshold = -0.5 }, true},
		{"zero threshold", func(r *Report) { r.Config.Threshold = 0 }, false},
		{"negative frames", func(r *Report) { r.Stats.Frames = -1 }, true},
		{"scores pairs mismatch", func(r *Report) { r.Stats.Pairs = 5 }, true},
		{"keyframe count mismatch", func(r *Report) { r.Stats.KeyframeCount = 2 }, true},
		{"zero timestamp", func(r *Report) { r.Timestamp = time.Time{} }, true},
		{"empty scores with zero pairs", func(r *Report) {
			r.Scores = nil
			r.Keyframes = nil
			r.Stats.Pairs = 0
			r.Stats.KeyframeCount = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
			if err != nil && !errors.Is(err, &ValidationError{}) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}

func TestNewReport(t *testing.T) {
	config := AnalysisConfig{Input: "clip.mp4", Width: 320, Height: 240, Threshold: 2.0, BlockSize: 8192}
	scores := []float64{1.0, 3.0}
	keyframes := []int{2}
	stats := Stats{Frames: 3, Pairs: 2, KeyframeCount: 1}

	r := NewReport("job-1", config, scores, keyframes, stats)

	if r.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", r.JobID)
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if err := r.Validate(); err != nil {
		t.Errorf("NewReport produced invalid report: %v", err)
	}
}

func TestReport_ToInfo(t *testing.T) {
	r := validReport()
	info := r.ToInfo()

	if info.JobID != r.JobID {
		t.Errorf("JobID = %q, want %q", info.JobID, r.JobID)
	}
	if info.Input != r.Config.Input {
		t.Errorf("Input = %q, want %q", info.Input, r.Config.Input)
	}
	if info.Frames != r.Stats.Frames {
		t.Errorf("Frames = %d, want %d", info.Frames, r.Stats.Frames)
	}
	if info.KeyframeCount != r.Stats.KeyframeCount {
		t.Errorf("KeyframeCount = %d, want %d", info.KeyframeCount, r.Stats.KeyframeCount)
	}
	if info.Threshold != r.Config.Threshold {
		t.Errorf("Threshold = %v, want %v", info.Threshold, r.Config.Threshold)
	}
}

func TestNotFoundError_Is(t *testing.T) {
	err := &NotFoundError{JobID: "abc"}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if errors.Is(err, &ValidationError{}) {
		t.Error("NotFoundError should not match ValidationError")
	}
}
