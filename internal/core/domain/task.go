package domain

import "time"

// Background task names.
const (
	TaskCalendarSync        = "calendar-sync"
	TaskConsumptionSync     = "consumption-sync"
	TaskConsumptionBackfill = "consumption-backfill"
)

// TaskState represents the lifecycle state of a background task handle.
type TaskState string

const (
	TaskStateNotStarted TaskState = "not_started"
	TaskStateRunning    TaskState = "running"
	TaskStateCompleted  TaskState = "completed"
	TaskStateCancelled  TaskState = "cancelled"
)

// TaskHandle tracks the latest run of a named background task.
type TaskHandle struct {
	Name       string     `json:"name"`
	RunID      string     `json:"run_id,omitempty"`
	TriggerKey string     `json:"trigger_key,omitempty"`
	State      TaskState  `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// NewTaskHandle creates a handle that has never run.
func NewTaskHandle(name string) *TaskHandle {
	return &TaskHandle{
		Name:  name,
		State: TaskStateNotStarted,
	}
}

// IsRunning reports whether the task is in flight.
func (h *TaskHandle) IsRunning() bool {
	return h != nil && h.State == TaskStateRunning
}

// MarkRunning records a new run.
func (h *TaskHandle) MarkRunning(runID, triggerKey string, now time.Time) {
	h.RunID = runID
	h.TriggerKey = triggerKey
	h.State = TaskStateRunning
	h.StartedAt = &now
	h.EndedAt = nil
	h.Error = ""
}

// MarkCompleted ends the run. A failed run also completes so that a
// later trigger can start it again.
func (h *TaskHandle) MarkCompleted(err error, now time.Time) {
	h.State = TaskStateCompleted
	h.EndedAt = &now
	if err != nil {
		h.Error = err.Error()
	}
}

// MarkCancelled ends the run after cancellation.
func (h *TaskHandle) MarkCancelled(now time.Time) {
	h.State = TaskStateCancelled
	h.EndedAt = &now
}

// Duration returns the run time, or zero while running.
func (h *TaskHandle) Duration() time.Duration {
	if h.StartedAt == nil || h.EndedAt == nil {
		return 0
	}
	return h.EndedAt.Sub(*h.StartedAt)
}
