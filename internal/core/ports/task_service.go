package ports

import (
	"context"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// TaskInput is the unit of work handed to the task queue.
type TaskInput struct {
	ID      string
	Name    string
	Payload map[string]any
}

// TaskService submits background tasks and reports their status.
type TaskService interface {
	Submit(ctx context.Context, name string, payload map[string]any) (*domain.Task, error)
	Status(ctx context.Context, id string) (*domain.Task, error)
}

// TaskProcessor runs one queued task to completion, retries included.
type TaskProcessor interface {
	Process(ctx context.Context, in TaskInput) error
}
