package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crudkit/identity-api/internal/core/domain"
)

type stubTasks struct {
	submitted []string
	payloads  []map[string]any
	tasks     map[string]*domain.Task
}

func (s *stubTasks) Submit(_ context.Context, name string, payload map[string]any) (*domain.Task, error) {
	if name == "" {
		return nil, domain.ErrValidation
	}
	s.submitted = append(s.submitted, name)
	s.payloads = append(s.payloads, payload)
	return &domain.Task{ID: "t-1", Name: name, Status: domain.TaskPending}, nil
}

func (s *stubTasks) Status(_ context.Context, id string) (*domain.Task, error) {
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func TestTaskHandler_Submit(t *testing.T) {
	tasks := &stubTasks{}
	h := NewTaskHandler(tasks)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	if err := h.Example(e.NewContext(jsonRequest(http.MethodPost, "/tasks/example", `{"word":"hello"}`), rec)); err != nil {
		t.Fatalf("example: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp taskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.TaskID != "t-1" || tasks.payloads[0]["word"] != "hello" {
		t.Fatalf("resp = %+v, payload = %v", resp, tasks.payloads[0])
	}

	if err := h.Example(e.NewContext(jsonRequest(http.MethodPost, "/tasks/example", `{}`), httptest.NewRecorder())); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing word: got %v", err)
	}

	if err := h.Cleanup(e.NewContext(httptest.NewRequest(http.MethodPost, "/tasks/cleanup", nil), httptest.NewRecorder())); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if got := tasks.submitted; len(got) != 2 || got[1] != domain.TaskCleanup {
		t.Fatalf("submitted = %v", got)
	}
}

func TestTaskHandler_Status(t *testing.T) {
	tasks := &stubTasks{tasks: map[string]*domain.Task{
		"done": {ID: "done", Status: domain.TaskSuccess, Result: "processed word: HI"},
	}}
	h := NewTaskHandler(tasks)
	e := newTestEcho()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("done")
	if err := h.Status(c); err != nil {
		t.Fatalf("status: %v", err)
	}
	var resp taskStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != string(domain.TaskSuccess) || resp.Result != "processed word: HI" {
		t.Fatalf("resp = %+v", resp)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("missing")
	if err := h.Status(c); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
}
