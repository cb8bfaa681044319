package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framedelta_jobs_total",
		Help: "Total number of analysis jobs finished, by terminal state",
	}, []string{"state"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framedelta_job_duration_seconds",
		Help:    "Duration of analysis pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	framesReadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedelta_frames_read_total",
		Help: "Total number of frames ingested across all jobs",
	})

	pairsScoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedelta_pairs_scored_total",
		Help: "Total number of frame pairs scored across all jobs",
	})

	keyframesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedelta_keyframes_selected_total",
		Help: "Total number of keyframes selected across all jobs",
	})

	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framedelta_active_jobs",
		Help: "Number of currently running analysis jobs",
	})
)
