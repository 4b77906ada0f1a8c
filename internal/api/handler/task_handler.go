package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/api/metrics"
	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// TaskHandler submits background tasks and reports their status.
type TaskHandler struct {
	tasks ports.TaskService
}

func NewTaskHandler(tasks ports.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Mount registers the task routes behind the active gate.
func (h *TaskHandler) Mount(g *echo.Group, active echo.MiddlewareFunc) {
	g.Use(active)
	g.POST("/example", h.Example)
	g.POST("/process-data", h.ProcessData)
	g.POST("/cleanup", h.Cleanup)
	g.GET("/status/:id", h.Status)
}

// Example upper-cases a word in the background.
//
// @Summary      Submit example task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      exampleTaskRequest  true  "Word to process"
// @Success      202   {object}  taskResponse
// @Failure      503   {object}  map[string]string
// @Router       /tasks/example [post]
func (h *TaskHandler) Example(c echo.Context) error {
	var req exampleTaskRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	return h.submit(c, domain.TaskExample, map[string]any{"word": req.Word}, "example task started")
}

// @Summary      Submit data processing task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      processDataRequest  true  "Data to process"
// @Success      202   {object}  taskResponse
// @Router       /tasks/process-data [post]
func (h *TaskHandler) ProcessData(c echo.Context) error {
	var req processDataRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	return h.submit(c, domain.TaskProcessData, map[string]any{"data": req.Data}, "data processing task started")
}

// @Summary      Submit cleanup task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Success      202   {object}  taskResponse
// @Router       /tasks/cleanup [post]
func (h *TaskHandler) Cleanup(c echo.Context) error {
	return h.submit(c, domain.TaskCleanup, nil, "cleanup task started")
}

// Status reports the state of a submitted task.
//
// @Summary      Task status
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  taskStatusResponse
// @Failure      404  {object}  map[string]string
// @Router       /tasks/status/{id} [get]
func (h *TaskHandler) Status(c echo.Context) error {
	task, err := h.tasks.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, taskStatusResponse{
		TaskID: task.ID,
		Status: string(task.Status),
		Result: task.Result,
		Error:  task.Error,
	})
}

func (h *TaskHandler) submit(c echo.Context, name string, payload map[string]any, msg string) error {
	task, err := h.tasks.Submit(c.Request().Context(), name, payload)
	if err != nil {
		return err
	}
	metrics.TasksSubmittedTotal.WithLabelValues(name).Inc()
	return c.JSON(http.StatusAccepted, taskResponse{TaskID: task.ID, Message: msg + ": " + task.ID})
}
