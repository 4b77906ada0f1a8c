package domain

import (
	"errors"
	"time"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskStarted TaskStatus = "STARTED"
	TaskRetry   TaskStatus = "RETRY"
	TaskSuccess TaskStatus = "SUCCESS"
	TaskFailure TaskStatus = "FAILURE"
)

// Task names accepted by the task queue.
const (
	TaskExample     = "example"
	TaskProcessData = "process_data"
	TaskCleanup     = "cleanup"
)

var ErrQueueFull = errors.New("task queue is full")

// Task records one submitted background job and its outcome.
type Task struct {
	ID        string     `json:"task_id"`
	Name      string     `json:"name"`
	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	Result    any        `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Done reports whether the task reached a terminal state.
func (t Task) Done() bool {
	return t.Status == TaskSuccess || t.Status == TaskFailure
}
