package agents

import (
	"sync"
	"time"
)

// RunEventType marks a phase of a live run.
type RunEventType string

const (
	RunEventStarted   RunEventType = "started"
	RunEventStep      RunEventType = "step"
	RunEventCompleted RunEventType = "completed"
	RunEventFailed    RunEventType = "failed"
)

// RunEvent is a live progress update emitted while a run executes. Stream
// subscribers receive these as they happen; the full Thought still lands in
// history when the run finishes.
type RunEvent struct {
	Type      RunEventType `json:"type"`
	AgentName string       `json:"agent_name"`
	ThoughtID string       `json:"thought_id"`
	Task      string       `json:"task,omitempty"`
	Step      *ThoughtStep `json:"step,omitempty"`
	Result    string       `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

const subscriberBuffer = 32

// eventHub fans run events out to any number of subscribers. Slow
// subscribers drop events instead of blocking the run.
type eventHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan RunEvent
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan RunEvent)}
}

func (h *eventHub) subscribe() (<-chan RunEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan RunEvent, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (h *eventHub) publish(event RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub <- event:
		default:
		}
	}
}
