package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// syncQueue runs each task inline on Enqueue.
type syncQueue struct {
	svc *TaskService
	err error
}

func (q *syncQueue) Enqueue(in ports.TaskInput) error {
	if q.err != nil {
		return q.err
	}
	_ = q.svc.Process(context.Background(), in)
	return nil
}

type stubPurger struct {
	calls int
	err   error
}

func (p *stubPurger) PurgeExpired(context.Context) (int, error) {
	p.calls++
	return 2, p.err
}

func newTestTaskService(retries int, purger SessionPurger) (*TaskService, *[]time.Duration) {
	svc := NewTaskService(retries, purger, zerolog.Nop())
	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	svc.AttachQueue(&syncQueue{svc: svc})
	return svc, &slept
}

func TestTaskService_ExampleSucceeds(t *testing.T) {
	svc, slept := newTestTaskService(3, nil)

	task, err := svc.Submit(context.Background(), domain.TaskExample, map[string]any{"word": "hello"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := svc.Status(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != domain.TaskSuccess || got.Result != "processed word: HELLO" {
		t.Fatalf("task = %+v", got)
	}
	if got.Attempts != 1 || len(*slept) != 0 {
		t.Fatalf("attempts = %d, sleeps = %v", got.Attempts, *slept)
	}
}

func TestTaskService_RetriesWithBackoffThenFails(t *testing.T) {
	svc, slept := newTestTaskService(3, nil)

	task, err := svc.Submit(context.Background(), domain.TaskExample, map[string]any{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := svc.Status(context.Background(), task.ID)
	if got.Status != domain.TaskFailure || got.Error == "" {
		t.Fatalf("task = %+v", got)
	}
	if got.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4", got.Attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *slept, want)
	}
	for i := range want {
		if (*slept)[i] != want[i] {
			t.Fatalf("sleeps = %v, want %v", *slept, want)
		}
	}
}

func TestTaskService_CleanupNeverRetries(t *testing.T) {
	purger := &stubPurger{err: errors.New("boom")}
	svc, slept := newTestTaskService(3, purger)

	task, err := svc.Submit(context.Background(), domain.TaskCleanup, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := svc.Status(context.Background(), task.ID)
	if got.Status != domain.TaskFailure || purger.calls != 1 || len(*slept) != 0 {
		t.Fatalf("task = %+v calls = %d sleeps = %v", got, purger.calls, *slept)
	}
}

func TestTaskService_ProcessData(t *testing.T) {
	svc, _ := newTestTaskService(3, nil)
	task, err := svc.Submit(context.Background(), domain.TaskProcessData, map[string]any{"data": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := svc.Status(context.Background(), task.ID)
	result, ok := got.Result.(map[string]any)
	if !ok || result["processed"] != true {
		t.Fatalf("result = %#v", got.Result)
	}
}

func TestTaskService_SubmitErrors(t *testing.T) {
	svc, _ := newTestTaskService(3, nil)
	if _, err := svc.Submit(context.Background(), "nope", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown task: got %v", err)
	}

	svc.AttachQueue(&syncQueue{svc: svc, err: domain.ErrQueueFull})
	if _, err := svc.Submit(context.Background(), domain.TaskExample, nil); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("full queue: got %v", err)
	}
	if _, err := svc.Status(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing status: got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	cases := map[int]time.Duration{0: 0, 1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 7: time.Minute, 100: time.Minute}
	for n, want := range cases {
		if got := Backoff(n); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", n, got, want)
		}
	}
}
