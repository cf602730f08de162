package agents

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordStatus marks the outcome of a single dispatch.
type RecordStatus string

const (
	RecordStatusSuccess RecordStatus = "success"
	RecordStatusFailed  RecordStatus = "failed"
)

// InvocationRecord is an immutable log entry for one completed or failed
// dispatch. Lookup and validation failures never produce a record.
type InvocationRecord struct {
	ID        string                 `json:"id"`
	AgentName string                 `json:"agent_name"`
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    interface{}            `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Status    RecordStatus           `json:"status"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
}

// ThoughtStep is a single iteration of the think/act loop.
type ThoughtStep struct {
	Iteration int        `json:"iteration"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []StepCall `json:"tool_calls,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// StepCall is one tool invocation requested during a thought step.
type StepCall struct {
	ToolName string `json:"tool_name"`
	Args     string `json:"args"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Thought is the full record of one Run: the task, every step taken, and the
// final result.
type Thought struct {
	ID        string        `json:"id"`
	AgentName string        `json:"agent_name"`
	Task      string        `json:"task"`
	Steps     []ThoughtStep `json:"steps"`
	Result    string        `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// history is the mutex-guarded append-only store behind each agent.
type history struct {
	mu          sync.RWMutex
	records     []InvocationRecord
	thoughts    []Thought
	maxThoughts int
}

func newHistory(maxThoughts int) *history {
	if maxThoughts <= 0 {
		maxThoughts = 200
	}
	return &history{maxThoughts: maxThoughts}
}

func (h *history) appendRecord(rec InvocationRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
}

func (h *history) appendThought(th Thought) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thoughts = append(h.thoughts, th)
	if len(h.thoughts) > h.maxThoughts {
		h.thoughts = h.thoughts[len(h.thoughts)-h.maxThoughts:]
	}
}

// recentRecords returns up to limit records, newest last. limit <= 0 means all.
func (h *history) recentRecords(limit int) []InvocationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if limit > 0 && len(h.records) > limit {
		start = len(h.records) - limit
	}
	out := make([]InvocationRecord, len(h.records)-start)
	copy(out, h.records[start:])
	return out
}

// recentThoughts returns up to limit thoughts, newest last. limit <= 0 means all.
func (h *history) recentThoughts(limit int) []Thought {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if limit > 0 && len(h.thoughts) > limit {
		start = len(h.thoughts) - limit
	}
	out := make([]Thought, len(h.thoughts)-start)
	copy(out, h.thoughts[start:])
	return out
}

func (h *history) counts() (records, thoughts int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records), len(h.thoughts)
}

// prune drops the oldest thoughts beyond max. Returns how many were dropped.
func (h *history) prune(max int) int {
	if max <= 0 {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.thoughts) <= max {
		return 0
	}
	dropped := len(h.thoughts) - max
	h.thoughts = h.thoughts[dropped:]
	return dropped
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
	h.thoughts = nil
}

func newRecordID() string {
	return uuid.NewString()
}
