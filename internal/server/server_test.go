package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/framedelta/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	dataDir := t.TempDir()
	fs, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	s := NewServer(":0", dataDir, fs)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// writeRawStream writes count 2x2 grayscale frames to a temp file. Frame i
// has all pixels set to values[i].
func writeRawStream(t *testing.T, values ...byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "frames.raw")
	var buf bytes.Buffer
	for _, v := range values {
		buf.Write([]byte{v, v, v, v})
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write raw stream: %v", err)
	}
	return path
}

func postJob(t *testing.T, ts *httptest.Server, config JobConfig) Job {
	t.Helper()

	body, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /jobs failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /jobs status = %d, want 201", resp.StatusCode)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	return job
}

// waitForJobState polls until the job reaches a terminal state.
func waitForJobState(t *testing.T, s *Server, jobID string) JobState {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, exists := s.jobManager.GetJob(jobID)
		if !exists {
			t.Fatalf("job %s disappeared", jobID)
		}
		switch job.State {
		case StateCompleted, StateFailed, StateCancelled:
			return job.State
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached a terminal state", jobID)
	return ""
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateJob_Validation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{nope"},
		{"missing input", "{}"},
		{"raw without geometry", `{"input":"frames.raw","raw":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/jobs", "application/json", bytes.NewReader([]byte(tt.body)))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestJobLifecycle_RawStream(t *testing.T) {
	s, ts := newTestServer(t)

	// Three 2x2 frames: flat 0, flat 100 (mean diff 100), flat 100.
	input := writeRawStream(t, 0, 100, 100)
	job := postJob(t, ts, JobConfig{
		Input:     input,
		Raw:       true,
		Width:     2,
		Height:    2,
		Threshold: 10.0,
	})

	if state := waitForJobState(t, s, job.ID); state != StateCompleted {
		j, _ := s.jobManager.GetJob(job.ID)
		t.Fatalf("job state = %s (error %q), want completed", state, j.Error)
	}

	// Status endpoint reflects the finished run.
	resp, err := http.Get(ts.URL + "/api/v1/jobs/" + job.ID)
	if err != nil {
		t.Fatalf("GET job failed: %v", err)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	resp.Body.Close()
	if status["framesRead"].(float64) != 3 {
		t.Errorf("framesRead = %v, want 3", status["framesRead"])
	}

	// Report endpoint serves the full result.
	resp, err = http.Get(ts.URL + "/api/v1/jobs/" + job.ID + "/report")
	if err != nil {
		t.Fatalf("GET report failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("report status = %d, want 200", resp.StatusCode)
	}

	var report store.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if len(report.Scores) != 2 {
		t.Fatalf("report has %d scores, want 2", len(report.Scores))
	}
	if report.Scores[0] != 100.0 || report.Scores[1] != 0.0 {
		t.Errorf("scores = %v, want [100 0]", report.Scores)
	}
	if len(report.Keyframes) != 1 || report.Keyframes[0] != 1 {
		t.Errorf("keyframes = %v, want [1]", report.Keyframes)
	}
}

func TestJobLifecycle_PersistsReportAndTrace(t *testing.T) {
	s, ts := newTestServer(t)

	input := writeRawStream(t, 0, 100, 100, 100)
	job := postJob(t, ts, JobConfig{
		Input: input, Raw: true, Width: 2, Height: 2, Threshold: 10.0,
	})

	if state := waitForJobState(t, s, job.ID); state != StateCompleted {
		t.Fatalf("job state = %s, want completed", state)
	}

	// Persistence is asynchronous with respect to the state flip; give
	// the worker a moment to finish writing.
	var persisted *store.Report
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r, err := s.reportStore.LoadReport(job.ID); err == nil {
			persisted = r
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if persisted == nil {
		t.Fatal("report was never persisted")
	}
	if persisted.JobID != job.ID {
		t.Errorf("persisted JobID = %q, want %q", persisted.JobID, job.ID)
	}

	tr, err := store.NewTraceReader(s.dataDir, job.ID)
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()
	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != len(persisted.Scores) {
		t.Fatalf("trace has %d entries, want %d", len(entries), len(persisted.Scores))
	}
	if !entries[0].Keyframe {
		t.Error("pair 0 should be flagged as keyframe in trace")
	}
	if entries[1].Keyframe {
		t.Error("pair 1 should not be flagged as keyframe in trace")
	}
}

func TestJobFailure_BadInput(t *testing.T) {
	s, ts := newTestServer(t)

	job := postJob(t, ts, JobConfig{
		Input: "/nonexistent/frames.raw", Raw: true, Width: 2, Height: 2,
	})

	if state := waitForJobState(t, s, job.ID); state != StateFailed {
		t.Errorf("job state = %s, want failed", state)
	}

	j, _ := s.jobManager.GetJob(job.ID)
	if j.Error == "" {
		t.Error("failed job should carry an error message")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/nonexistent")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCancelJob(t *testing.T) {
	s, ts := newTestServer(t)

	input := writeRawStream(t, 0, 100)
	job := postJob(t, ts, JobConfig{
		Input: input, Raw: true, Width: 2, Height: 2,
	})
	waitForJobState(t, s, job.ID)

	// A finished job cannot be cancelled.
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/jobs/"+job.ID, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("cancel finished job status = %d, want 409", resp.StatusCode)
	}

	// An unknown job is a 404.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/jobs/nonexistent", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cancel unknown job status = %d, want 404", resp.StatusCode)
	}
}

func TestListJobs(t *testing.T) {
	s, ts := newTestServer(t)

	input := writeRawStream(t, 0, 100)
	for i := 0; i < 2; i++ {
		job := postJob(t, ts, JobConfig{Input: input, Raw: true, Width: 2, Height: 2})
		waitForJobState(t, s, job.ID)
	}

	resp, err := http.Get(ts.URL + "/api/v1/jobs")
	if err != nil {
		t.Fatalf("GET /jobs failed: %v", err)
	}
	defer resp.Body.Close()

	var jobs []Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("failed to decode jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("listed %d jobs, want 2", len(jobs))
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/jobs", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestReport_NotFoundStates(t *testing.T) {
	s, ts := newTestServer(t)

	// Unknown job.
	resp, err := http.Get(ts.URL + "/api/v1/jobs/nonexistent/report")
	if err != nil {
		t.Fatalf("GET report failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job report status = %d, want 404", resp.StatusCode)
	}

	// Known job without a report yet.
	job := s.jobManager.CreateJob(testJobConfig())
	resp, err = http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/report", ts.URL, job.ID))
	if err != nil {
		t.Fatalf("GET report failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("pending job report status = %d, want 404", resp.StatusCode)
	}
}
