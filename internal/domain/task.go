package domain

import "time"

// TaskStatus is the forward-only lifecycle of an AgentTask/ServiceTask
// (spec §3): pending -> in_progress -> {completed|failed}.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// forwardTransitions enumerates the only legal (from, to) status moves,
// grounded on jaakkos-stringwork/internal/app/orchestrator.go's forward-only
// status discipline generalized to this spec's four-state lifecycle.
var forwardTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending:    {TaskInProgress: true, TaskCompleted: true, TaskFailed: true},
	TaskInProgress: {TaskCompleted: true, TaskFailed: true},
	TaskCompleted:  {},
	TaskFailed:     {},
}

// CanTransition reports whether moving from `from` to `to` is a legal
// forward transition. Terminal statuses (completed, failed) never move.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return false
	}
	next, ok := forwardTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether status is a terminal state.
func IsTerminal(status TaskStatus) bool {
	return status == TaskCompleted || status == TaskFailed
}

// TaskUpdate is one entry in a task's ordered Updates log (spec §3: "a task
// may have at most one terminal status; once terminal, updates may still
// grow ... but status does not change").
type TaskUpdate struct {
	Status    TaskStatus
	Result    any
	Error     string
	Metadata  map[string]any
	Timestamp time.Time
}

// AgentTask mirrors spec §3's AgentTask entity.
type AgentTask struct {
	ID                string
	Type              string
	Name              string
	AgentID           string
	ClientID          string
	ParentTaskID      string
	RequestingAgentID string
	Status            TaskStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	TaskData          any
	Result            any
	Error             string
	Updates           []TaskUpdate
}

// ServiceTask mirrors spec §3's ServiceTask entity — same shape as
// AgentTask, additionally keyed by ServiceID, with no ParentTaskID or
// RequestingAgentID (service invocations are not delegated).
type ServiceTask struct {
	ID        string
	ServiceID string
	AgentID   string
	ClientID  string
	ToolName  string
	Status    TaskStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	TaskData  any
	Result    any
	Error     string
	Updates   []TaskUpdate
}
