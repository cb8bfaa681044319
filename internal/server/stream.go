package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProgressEvent is one live progress snapshot pushed to SSE clients.
type ProgressEvent struct {
	JobID         string    `json:"jobId"`
	State         JobState  `json:"state"`
	FramesRead    int       `json:"framesRead"`
	PairsScored   int       `json:"pairsScored"`
	KeyframeCount int       `json:"keyframeCount"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventBroadcaster fans progress events out to the SSE subscribers of each
// job. The most recent event per job is retained so a client that connects
// mid-run (or reconnects) immediately sees the current state.
type EventBroadcaster struct {
	mu        sync.RWMutex
	subs      map[string]map[chan ProgressEvent]struct{}
	lastEvent map[string]ProgressEvent
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		subs:      make(map[string]map[chan ProgressEvent]struct{}),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe registers a listener for one job and returns its event channel.
// The channel is buffered; slow consumers drop events rather than stall the
// worker. The retained last event, if any, is delivered immediately.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10)
	set := eb.subs[jobID]
	if set == nil {
		set = make(map[chan ProgressEvent]struct{})
		eb.subs[jobID] = set
	}
	set[ch] = struct{}{}

	if last, ok := eb.lastEvent[jobID]; ok {
		ch <- last
	}
	return ch
}

// Unsubscribe removes a listener and closes its channel. Safe to call after
// CleanupJob already tore the job down.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	set, ok := eb.subs[jobID]
	if !ok {
		return
	}
	if _, present := set[ch]; !present {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(eb.subs, jobID)
	}
}

// Broadcast delivers an event to every subscriber of its job and retains it
// for late joiners. Subscribers whose buffers are full are skipped.
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.lastEvent[event.JobID] = event

	for ch := range eb.subs[event.JobID] {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE subscriber buffer full, dropping event", "jobID", event.JobID)
		}
	}
}

// CleanupJob drops all subscribers and the retained event for a job.
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.subs[jobID] {
		close(ch)
	}
	delete(eb.subs, jobID)
	delete(eb.lastEvent, jobID)
}

// handleJobStream streams job progress over SSE until the run finishes or
// the client goes away.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	// Current state first, so the client never starts blind.
	if err := writeSSEEvent(w, ProgressEvent{
		JobID:         job.ID,
		State:         job.State,
		FramesRead:    job.FramesRead,
		PairsScored:   job.PairsScored,
		KeyframeCount: job.KeyframeCount,
		Timestamp:     time.Now(),
	}); err != nil {
		return
	}
	flusher.Flush()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "jobID", jobID, "error", err)
				return
			}
			flusher.Flush()

		case <-ping.C:
			// Comment frame keeps idle proxies from dropping the stream.
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
