package importer

import "sync"

// Listener receives the notifications of one import job. Calls arrive on
// the worker goroutine running the job, so implementations must be safe to
// call from a goroutine other than the one that submitted the job.
type Listener interface {
	// StageStarted announces a new stage. total is the number of units the
	// stage will tick through (bytes for read stages, records for storing),
	// or -1 if unknown.
	StageStarted(stage Stage, label string, total int64)
	// Progress reports the units completed in the current stage.
	Progress(count int64)
	// Finished reports success with the number of stored caches.
	Finished(stored int)
	// FinishedWithError reports failure with a message fit for users.
	FinishedWithError(message string)
}

// NopListener ignores all notifications.
type NopListener struct{}

func (NopListener) StageStarted(Stage, string, int64) {}
func (NopListener) Progress(int64)                    {}
func (NopListener) Finished(int)                      {}
func (NopListener) FinishedWithError(string)          {}

// EventType identifies a listener notification.
type EventType string

const (
	EventStage    EventType = "stage"
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
	EventFailed   EventType = "failed"
)

// Event is a listener notification captured as a value, as delivered to
// progress subscribers.
type Event struct {
	JobID   string    `json:"jobId"`
	Type    EventType `json:"type"`
	Stage   Stage     `json:"stage"`
	Label   string    `json:"label,omitempty"`
	Total   int64     `json:"total"`
	Count   int64     `json:"count"`
	Stored  int       `json:"stored,omitempty"`
	Message string    `json:"message,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// Percent returns the progress of the current stage (0-100), or 0 when the
// stage total is unknown.
func (e Event) Percent() int {
	if e.Total <= 0 {
		return 0
	}
	p := int(e.Count * 100 / e.Total)
	if p > 100 {
		p = 100
	}
	return p
}

// Recorder is a Listener that keeps every event. Useful for tests and for
// the CLI summary.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) StageStarted(stage Stage, label string, total int64) {
	r.add(Event{Type: EventStage, Stage: stage, Label: label, Total: total})
}

func (r *Recorder) Progress(count int64) {
	r.add(Event{Type: EventProgress, Count: count})
}

func (r *Recorder) Finished(stored int) {
	r.add(Event{Type: EventFinished, Stage: StageFinished, Stored: stored})
}

func (r *Recorder) FinishedWithError(message string) {
	r.add(Event{Type: EventFailed, Stage: StageFinishedWithError, Message: message})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages returns the stages announced, in order.
func (r *Recorder) Stages() []Stage {
	var stages []Stage
	for _, e := range r.Events() {
		if e.Type == EventStage {
			stages = append(stages, e.Stage)
		}
	}
	return stages
}

// TicksIn counts progress events emitted while stage was current.
func (r *Recorder) TicksIn(stage Stage) int {
	var current Stage
	ticks := 0
	for _, e := range r.Events() {
		switch e.Type {
		case EventStage:
			current = e.Stage
		case EventProgress:
			if current == stage {
				ticks++
			}
		}
	}
	return ticks
}

// multiListener fans a notification out to several listeners.
type multiListener []Listener

func (m multiListener) StageStarted(stage Stage, label string, total int64) {
	for _, l := range m {
		l.StageStarted(stage, label, total)
	}
}

func (m multiListener) Progress(count int64) {
	for _, l := range m {
		l.Progress(count)
	}
}

func (m multiListener) Finished(stored int) {
	for _, l := range m {
		l.Finished(stored)
	}
}

func (m multiListener) FinishedWithError(message string) {
	for _, l := range m {
		l.FinishedWithError(message)
	}
}
