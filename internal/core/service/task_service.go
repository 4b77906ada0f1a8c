package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const (
	DefaultTaskRetries = 3
	taskBackoffBase    = time.Second
	taskBackoffMax     = time.Minute
	taskRetention      = 24 * time.Hour
)

// Enqueuer hands a task to the worker pool.
type Enqueuer interface {
	Enqueue(in ports.TaskInput) error
}

// SessionPurger drops expired admin sessions and reports how many went.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type taskHandler func(ctx context.Context, payload map[string]any) (any, error)

// TaskService keeps task status in memory and executes tasks pulled from the
// queue, retrying failed attempts with exponential backoff.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.Task
	queue   Enqueuer
	purger  SessionPurger
	retries map[string]int
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	log     zerolog.Logger
}

var (
	_ ports.TaskService   = (*TaskService)(nil)
	_ ports.TaskProcessor = (*TaskService)(nil)
)

// NewTaskService returns a TaskService. maxRetries applies to the example and
// process_data tasks; cleanup never retries. purger may be nil when the
// session store expires entries on its own.
func NewTaskService(maxRetries int, purger SessionPurger, log zerolog.Logger) *TaskService {
	if maxRetries < 0 {
		maxRetries = DefaultTaskRetries
	}
	return &TaskService{
		tasks:  make(map[string]*domain.Task),
		purger: purger,
		retries: map[string]int{
			domain.TaskExample:     maxRetries,
			domain.TaskProcessData: maxRetries,
			domain.TaskCleanup:     0,
		},
		sleep: sleepCtx,
		now:   time.Now,
		log:   log,
	}
}

// AttachQueue wires the worker pool that Submit hands tasks to.
func (s *TaskService) AttachQueue(q Enqueuer) { s.queue = q }

func (s *TaskService) Submit(ctx context.Context, name string, payload map[string]any) (*domain.Task, error) {
	if _, ok := s.retries[name]; !ok {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrValidation, name)
	}
	if s.queue == nil {
		return nil, domain.Unavailable("submit task", errors.New("no queue attached"))
	}

	now := s.now()
	task := &domain.Task{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    domain.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.pruneLocked(now)
	s.tasks[task.ID] = task
	s.mu.Unlock()

	if err := s.queue.Enqueue(ports.TaskInput{ID: task.ID, Name: name, Payload: payload}); err != nil {
		s.mu.Lock()
		delete(s.tasks, task.ID)
		s.mu.Unlock()
		return nil, domain.Unavailable("submit task", err)
	}

	s.log.Info().Str("task_id", task.ID).Str("task", name).Msg("task submitted")
	snapshot := *task
	return &snapshot, nil
}

func (s *TaskService) Status(_ context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %w", domain.ErrNotFound)
	}
	snapshot := *task
	return &snapshot, nil
}

// Process runs the named handler, retrying up to the task's retry budget.
// The returned error is the last attempt's failure.
func (s *TaskService) Process(ctx context.Context, in ports.TaskInput) error {
	handler := s.handler(in.Name)
	if handler == nil {
		s.finish(in.ID, nil, fmt.Errorf("unknown task %q", in.Name))
		return fmt.Errorf("process task: unknown task %q", in.Name)
	}
	maxRetries := s.retries[in.Name]

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.setStatus(in.ID, domain.TaskRetry, attempt)
			if err := s.sleep(ctx, Backoff(attempt)); err != nil {
				lastErr = err
				break
			}
		}
		s.setStatus(in.ID, domain.TaskStarted, attempt+1)

		result, err := handler(ctx, in.Payload)
		if err == nil {
			s.finish(in.ID, result, nil)
			s.log.Info().Str("task_id", in.ID).Str("task", in.Name).Int("attempts", attempt+1).Msg("task completed")
			return nil
		}
		lastErr = err
		s.log.Warn().Err(err).Str("task_id", in.ID).Str("task", in.Name).Int("attempt", attempt+1).Msg("task attempt failed")
	}

	s.finish(in.ID, nil, lastErr)
	return fmt.Errorf("process task %s: %w", in.Name, lastErr)
}

// Backoff is the delay before retry n (n >= 1): 1s, 2s, 4s ... capped at a minute.
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := taskBackoffBase << (n - 1)
	if d <= 0 || d > taskBackoffMax {
		return taskBackoffMax
	}
	return d
}

func (s *TaskService) handler(name string) taskHandler {
	switch name {
	case domain.TaskExample:
		return runExample
	case domain.TaskProcessData:
		return s.runProcessData
	case domain.TaskCleanup:
		return s.runCleanup
	}
	return nil
}

func runExample(_ context.Context, payload map[string]any) (any, error) {
	word, _ := payload["word"].(string)
	if word == "" {
		return nil, errors.New("word is required")
	}
	return "processed word: " + strings.ToUpper(word), nil
}

func (s *TaskService) runProcessData(_ context.Context, payload map[string]any) (any, error) {
	return map[string]any{
		"processed": true,
		"input":     payload["data"],
		"timestamp": s.now().Unix(),
	}, nil
}

func (s *TaskService) runCleanup(ctx context.Context, _ map[string]any) (any, error) {
	if s.purger == nil {
		return "cleanup completed: session store expires entries itself", nil
	}
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("cleanup completed: %d expired admin sessions removed", n), nil
}

func (s *TaskService) setStatus(id string, status domain.TaskStatus, attempts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Status = status
		task.Attempts = attempts
		task.UpdatedAt = s.now()
	}
}

func (s *TaskService) finish(id string, result any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return
	}
	task.UpdatedAt = s.now()
	if err != nil {
		task.Status = domain.TaskFailure
		task.Error = err.Error()
		return
	}
	task.Status = domain.TaskSuccess
	task.Result = result
}

// pruneLocked forgets finished tasks older than taskRetention.
func (s *TaskService) pruneLocked(now time.Time) {
	for id, task := range s.tasks {
		if task.Done() && now.Sub(task.UpdatedAt) > taskRetention {
			delete(s.tasks, id)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
