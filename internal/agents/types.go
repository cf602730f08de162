package agents

import "time"

// Status describes what an agent is currently doing.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusThinking Status = "thinking"
	StatusActing   Status = "acting"
	StatusLearning Status = "learning"
	StatusError    Status = "error"
)

// TaskPriority orders queued work for an agent.
type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// StatusReport is a point-in-time snapshot of an agent's state.
type StatusReport struct {
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	ToolCount    int       `json:"tool_count"`
	ThoughtCount int       `json:"thought_count"`
	RecordCount  int       `json:"record_count"`
	LastActive   time.Time `json:"last_active"`
}
