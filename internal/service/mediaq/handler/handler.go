// Package handler serves the local control API over the task queue.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/server"
	"mediaq/internal/pkg/taskqueue"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Queue is the part of the task queue the API drives
type Queue interface {
	AddTask(taskType string, payload any, opts ...taskqueue.TaskOption) (string, error)
	AwaitTask(ctx context.Context, taskType string, payload any) (json.RawMessage, error)
	GetStatus() taskqueue.QueueStatus
	GetWorkerState() []taskqueue.WorkerInfo
}

// SubmitTaskRequest is the body of POST /api/v1/tasks
type SubmitTaskRequest struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitTaskResponse is returned once a task is queued or, with wait=true, finished
type SubmitTaskResponse struct {
	ID      string          `json:"id,omitempty"`
	Outputs json.RawMessage `json:"outputs,omitempty"`
}

// TaskHandler handles task queue HTTP requests
type TaskHandler struct {
	queue  Queue
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(queue Queue, log *logger.Logger) *TaskHandler {
	return &TaskHandler{queue: queue, logger: log}
}

// Submit queues a task. With ?wait=true it blocks until the task finishes
// and returns its outputs.
func (h *TaskHandler) Submit(c echo.Context) error {
	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid request body")
	}
	if req.Type == "" {
		return server.ErrorResponse(c, http.StatusBadRequest, nil, "Task type is required")
	}

	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	if wait {
		if req.ID != "" {
			return server.ErrorResponse(c, http.StatusBadRequest, nil, "Task id cannot be combined with wait")
		}
		return h.submitAndWait(c, req)
	}

	var opts []taskqueue.TaskOption
	if req.ID != "" {
		opts = append(opts, taskqueue.WithTaskID(req.ID))
	}

	id, err := h.queue.AddTask(req.Type, payloadOf(req), opts...)
	if err != nil {
		return h.submitError(c, err)
	}
	h.logger.Info("Task submitted",
		zap.String("task_id", id),
		zap.String("task_type", req.Type),
		zap.String("subject", SubjectFromContext(c)),
	)
	return server.SuccessResponse(c, http.StatusAccepted, SubmitTaskResponse{ID: id}, "Task queued")
}

func (h *TaskHandler) submitAndWait(c echo.Context, req SubmitTaskRequest) error {
	h.logger.Info("Task submitted",
		zap.String("task_type", req.Type),
		zap.String("subject", SubjectFromContext(c)),
		zap.Bool("wait", true),
	)
	outputs, err := h.queue.AwaitTask(c.Request().Context(), req.Type, payloadOf(req))

	var taskErr *taskqueue.TaskError
	switch {
	case errors.As(err, &taskErr):
		return server.ErrorResponse(c, http.StatusUnprocessableEntity, taskErr.Err.Error(), "Task failed")
	case err != nil:
		return h.submitError(c, err)
	}
	return server.SuccessResponse(c, http.StatusOK, SubmitTaskResponse{Outputs: outputs}, "Task completed")
}

func (h *TaskHandler) submitError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, taskqueue.ErrDuplicateTask):
		return server.ErrorResponse(c, http.StatusConflict, err.Error(), "Task already exists")
	case errors.Is(err, taskqueue.ErrQueueClosed):
		return server.ErrorResponse(c, http.StatusServiceUnavailable, err.Error(), "Queue is shut down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return server.ErrorResponse(c, http.StatusRequestTimeout, err.Error(), "Request canceled")
	default:
		h.logger.Error("Failed to submit task", zap.Error(err))
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Failed to submit task")
	}
}

// payloadOf keeps an absent payload nil rather than the JSON literal null
func payloadOf(req SubmitTaskRequest) any {
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		return nil
	}
	return req.Payload
}

// Status returns the queue counters
func (h *TaskHandler) Status(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.queue.GetStatus(), "Queue status retrieved")
}

// Workers returns a snapshot of the worker pool
func (h *TaskHandler) Workers(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.queue.GetWorkerState(), "Worker state retrieved")
}
