package orchestrator

import (
	"sync"

	"trip_planner/internal/domain"
)

type EventType string

const (
	EventAnalyzing     EventType = "analyzing"
	EventAgentStart    EventType = "agent_start"
	EventAgentComplete EventType = "agent_complete"
	EventFinalizing    EventType = "finalizing"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
	EventEnd           EventType = "end"
)

// Event is one progress notification of a run. Only the fields that belong
// to the event type are set.
type Event struct {
	Type         EventType                `json:"type"`
	RunID        string                   `json:"runId,omitempty"`
	Domain       domain.Domain            `json:"domain,omitempty"`
	RecordsFound *int                     `json:"recordsFound,omitempty"`
	Message      string                   `json:"message,omitempty"`
	Records      []domain.CanonicalRecord `json:"records,omitempty"`
}

// Sink receives progress events. Emit must not block the run.
type Sink interface {
	Emit(Event)
}

type NopSink struct{}

func (NopSink) Emit(Event) {}

// ChanSink forwards events to a channel and drops them when it is full.
type ChanSink chan Event

func (c ChanSink) Emit(e Event) {
	select {
	case c <- e:
	default:
	}
}

type FuncSink func(Event)

func (f FuncSink) Emit(e Event) { f(e) }

// fence stops forwarding once the end event went out, so agents that
// finish after a timeout never reach the caller's sink.
type fence struct {
	mu     sync.Mutex
	closed bool
	next   Sink
	runID  string
}

func newFence(next Sink, runID string) *fence {
	if next == nil {
		next = NopSink{}
	}
	return &fence{next: next, runID: runID}
}

func (f *fence) Emit(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	e.RunID = f.runID
	f.next.Emit(e)
	if e.Type == EventEnd {
		f.closed = true
	}
}

func count(n int) *int { return &n }
