package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ProgressEvent is one snapshot of a job pushed to stream subscribers.
type ProgressEvent struct {
	JobID          string    `json:"jobId"`
	State          JobState  `json:"state"`
	Step           int       `json:"step"`
	Idle           int       `json:"idle"`
	Energy         float64   `json:"energy"`
	BestEnergy     float64   `json:"bestEnergy"`
	AcceptanceRate float64   `json:"acceptanceRate"`
	StepsPerSecond float64   `json:"stepsPerSecond"`
	Timestamp      time.Time `json:"timestamp"`
}

// name is the SSE event type: "progress" while the job runs, then its
// terminal state.
func (e ProgressEvent) name() string {
	if e.State.Terminal() {
		return string(e.State)
	}
	return "progress"
}

func eventFromJob(job *Job, stepsPerSecond float64) ProgressEvent {
	return ProgressEvent{
		JobID:          job.ID,
		State:          job.State,
		Step:           job.Step,
		Idle:           job.Idle,
		Energy:         job.Energy,
		BestEnergy:     job.BestEnergy,
		AcceptanceRate: job.AcceptanceRate,
		StepsPerSecond: stepsPerSecond,
		Timestamp:      time.Now(),
	}
}

// subscriberBuffer is the number of events a slow client may lag behind
// before events are dropped for it.
const subscriberBuffer = 16

// topic is the fan-out state of one job.
type topic struct {
	subscribers map[chan ProgressEvent]struct{}
	latest      *ProgressEvent
}

// EventBroadcaster fans progress events out to the stream clients of each
// job. A new subscriber first receives the latest event of its job.
type EventBroadcaster struct {
	mu     sync.Mutex
	topics map[string]*topic
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{topics: make(map[string]*topic)}
}

func (eb *EventBroadcaster) topic(jobID string) *topic {
	t, ok := eb.topics[jobID]
	if !ok {
		t = &topic{subscribers: make(map[chan ProgressEvent]struct{})}
		eb.topics[jobID] = t
	}
	return t
}

// Subscribe registers a client for a job's events.
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, subscriberBuffer)
	t := eb.topic(jobID)
	t.subscribers[ch] = struct{}{}
	if t.latest != nil {
		ch <- *t.latest
	}

	slog.Debug("SSE client subscribed", "jobID", jobID, "total_clients", len(t.subscribers))
	return ch
}

// Unsubscribe removes and closes a client channel. Channels already closed
// by CleanupJob are ignored.
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	t, ok := eb.topics[jobID]
	if !ok {
		return
	}
	if _, subscribed := t.subscribers[ch]; subscribed {
		delete(t.subscribers, ch)
		close(ch)
	}
	if len(t.subscribers) == 0 && t.latest == nil {
		delete(eb.topics, jobID)
	}

	slog.Debug("SSE client unsubscribed", "jobID", jobID)
}

// Broadcast records the event as the job's latest and delivers it to every
// subscriber without blocking.
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	t := eb.topic(event.JobID)
	t.latest = &event

	for ch := range t.subscribers {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE channel full, skipping event", "jobID", event.JobID, "step", event.Step)
		}
	}
}

// CleanupJob closes all client channels of a job and forgets its latest event.
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if t, ok := eb.topics[jobID]; ok {
		for ch := range t.subscribers {
			close(ch)
		}
		delete(eb.topics, jobID)
	}
	slog.Debug("Cleaned up SSE resources", "jobID", jobID)
}

// handleJobStream serves GET /api/v1/jobs/:id/stream. The stream ends
// after the job's terminal event.
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

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	// The job snapshot can be newer than the broadcaster's latest event.
	current := eventFromJob(job, 0)
	if err := writeSSEEvent(w, current); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()
	if current.State.Terminal() {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("SSE client disconnected", "jobID", jobID)
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			// Skip a replayed event older than the snapshot.
			if event.Step < current.Step && !event.State.Terminal() {
				continue
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
			if event.State.Terminal() {
				return
			}

		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes one event as "event", "id" and "data" fields. The
// id is the step so clients can order events.
func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", event.name(), strconv.Itoa(event.Step), data)
	return err
}
