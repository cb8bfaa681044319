package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/framedelta/internal/analyze"
	"github.com/cwbudde/framedelta/internal/store"
)

// runJob executes an analysis job in the background.
// If reportStore is not nil, the completed report and its score trace are
// persisted under the job's directory.
func runJob(ctx context.Context, jm *JobManager, reportStore store.Store, dataDir, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	activeJobs.Inc()
	defer activeJobs.Dec()

	slog.Info("Starting job", "job_id", jobID, "input", job.Config.Input)

	analyzer, err := analyze.New(analysisOptions(jm, jobID, job.Config))
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Check for cancellation before starting the pipeline
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	// Progress broadcasting is throttled by a monitor goroutine rather
	// than emitted per frame.
	start := time.Now()
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, jobID, progressDone)

	report, runErr := analyzer.Run(ctx)
	close(progressDone)
	elapsed := time.Since(start)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, runErr)
		return runErr
	}

	report.JobID = jobID

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.FramesRead = report.Stats.Frames
		j.PairsScored = report.Stats.Pairs
		j.KeyframeCount = report.Stats.KeyframeCount
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}
	jm.SetReport(jobID, report)

	jobsTotal.WithLabelValues(string(StateCompleted)).Inc()
	jobDuration.WithLabelValues("read").Observe(report.Stats.ReadSeconds)
	jobDuration.WithLabelValues("score").Observe(report.Stats.ScoreSeconds)
	jobDuration.WithLabelValues("total").Observe(report.Stats.TotalSeconds)
	framesReadTotal.Add(float64(report.Stats.Frames))
	pairsScoredTotal.Add(float64(report.Stats.Pairs))
	keyframesSelectedTotal.Add(float64(report.Stats.KeyframeCount))

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"frames", report.Stats.Frames,
		"keyframes", report.Stats.KeyframeCount,
		"mpixels_per_sec", report.Stats.MPixelsPerSec,
	)

	if reportStore != nil {
		if err := persistReport(reportStore, dataDir, jobID, report); err != nil {
			slog.Warn("Failed to persist report", "job_id", jobID, "error", err)
			// The in-memory result still serves the API; persistence is
			// best effort.
		}
	}

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:         jobID,
		State:         StateCompleted,
		FramesRead:    report.Stats.Frames,
		PairsScored:   report.Stats.Pairs,
		KeyframeCount: report.Stats.KeyframeCount,
		Timestamp:     time.Now(),
	})

	return nil
}

// analysisOptions maps a job config onto engine options, wiring the
// progress callback into the job's live counters.
func analysisOptions(jm *JobManager, jobID string, config JobConfig) analyze.Options {
	return analyze.Options{
		Input:      config.Input,
		Raw:        config.Raw,
		Width:      config.Width,
		Height:     config.Height,
		FPS:        config.FPS,
		Threshold:  config.Threshold,
		BlockSize:  config.BlockSize,
		ScalarOnly: !config.Vectorize,
		Parallel:   config.Parallel,
		MaxFrames:  config.MaxFrames,
		Window:     config.Window,
		Save:       config.Save,
		MaxSave:    config.MaxSave,
		OutDir:     config.OutDir,
		Progress: func(p analyze.Progress) {
			jm.UpdateJob(jobID, func(j *Job) {
				j.FramesRead = p.FramesRead
				j.PairsScored = p.PairsScored
				j.KeyframeCount = p.Keyframes
			})
		},
	}
}

// persistReport saves report.json and the per-pair score trace.
func persistReport(reportStore store.Store, dataDir, jobID string, report *store.Report) error {
	if err := reportStore.SaveReport(jobID, report); err != nil {
		return err
	}

	tw, err := store.NewTraceWriter(dataDir, jobID)
	if err != nil {
		return err
	}
	defer tw.Close()

	keyframes := make(map[int]bool, len(report.Keyframes))
	for _, kf := range report.Keyframes {
		keyframes[kf] = true
	}
	for pair, score := range report.Scores {
		entry := store.TraceEntry{
			Pair:      pair,
			Score:     score,
			Keyframe:  keyframes[pair+1],
			Timestamp: report.Timestamp,
		}
		if err := tw.Write(entry); err != nil {
			return err
		}
	}
	return nil
}

// monitorProgress periodically broadcasts progress events while the
// pipeline runs
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:         jobID,
				State:         job.State,
				FramesRead:    job.FramesRead,
				PairsScored:   job.PairsScored,
				KeyframeCount: job.KeyframeCount,
				Timestamp:     time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	jobsTotal.WithLabelValues(string(StateFailed)).Inc()
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	jobsTotal.WithLabelValues(string(StateCancelled)).Inc()
	slog.Info("Job cancelled", "job_id", jobID)
}
