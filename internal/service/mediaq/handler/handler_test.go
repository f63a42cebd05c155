package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mediaq/internal/pkg/health"
	"mediaq/internal/pkg/logger"
	"mediaq/internal/pkg/taskqueue"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubQueue struct {
	added    []string
	addErr   error
	outputs  json.RawMessage
	awaitErr error
	status   taskqueue.QueueStatus
	workers  []taskqueue.WorkerInfo
}

func (q *stubQueue) AddTask(taskType string, payload any, opts ...taskqueue.TaskOption) (string, error) {
	if q.addErr != nil {
		return "", q.addErr
	}
	q.added = append(q.added, taskType)
	return fmt.Sprintf("task-%d", len(q.added)), nil
}

func (q *stubQueue) AwaitTask(ctx context.Context, taskType string, payload any) (json.RawMessage, error) {
	return q.outputs, q.awaitErr
}

func (q *stubQueue) GetStatus() taskqueue.QueueStatus      { return q.status }
func (q *stubQueue) GetWorkerState() []taskqueue.WorkerInfo { return q.workers }

type upProvider struct{}

func (upProvider) Name() string { return "stub" }

func (upProvider) Check(context.Context) health.HealthCheckResult {
	return health.HealthCheckResult{Name: "stub", Status: health.StatusUp, CheckedAt: time.Now()}
}

func newTestServer(q *stubQueue, secret string) *echo.Echo {
	return newLoggedTestServer(q, secret, logger.NewNop())
}

func newLoggedTestServer(q *stubQueue, secret string, log *logger.Logger) *echo.Echo {
	e := echo.New()
	reg := prometheus.NewRegistry()
	taskqueue.NewMetrics(reg)

	healthService := health.NewService(health.DefaultTimeout)
	healthService.RegisterProvider(upProvider{}, true)

	RegisterRoutes(e, NewTaskHandler(q, log), healthService, reg, secret)
	return e
}

func do(e *echo.Echo, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
	Message string          `json:"message"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSubmit(t *testing.T) {
	q := &stubQueue{}
	e := newTestServer(q, "")

	rec := do(e, http.MethodPost, "/api/v1/tasks", `{"type":"hash","payload":{"path":"/tmp/a"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"id":"task-1"}`, string(env.Data))
	assert.Equal(t, []string{"hash"}, q.added)
}

func TestSubmit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		addErr error
		want   int
	}{
		{"malformed body", `{"type":`, nil, http.StatusBadRequest},
		{"missing type", `{"payload":{}}`, nil, http.StatusBadRequest},
		{"duplicate id", `{"id":"a","type":"hash"}`, fmt.Errorf("task a: %w", taskqueue.ErrDuplicateTask), http.StatusConflict},
		{"queue closed", `{"type":"hash"}`, taskqueue.ErrQueueClosed, http.StatusServiceUnavailable},
		{"other", `{"type":"hash"}`, errors.New("bad payload"), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(&stubQueue{addErr: tt.addErr}, "")
			rec := do(e, http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, decode(t, rec).Success)
		})
	}
}

func TestSubmit_Wait(t *testing.T) {
	e := newTestServer(&stubQueue{outputs: json.RawMessage(`{"sha256":"abc"}`)}, "")
	rec := do(e, http.MethodPost, "/api/v1/tasks?wait=true", `{"type":"hash","payload":{"path":"x"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outputs":{"sha256":"abc"}}`, string(decode(t, rec).Data))

	failed := &stubQueue{awaitErr: &taskqueue.TaskError{TaskID: "t", Err: taskqueue.ErrTaskTimeout}}
	rec = do(newTestServer(failed, ""), http.MethodPost, "/api/v1/tasks?wait=true", `{"type":"hash"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Task timeout", decode(t, rec).Error)

	rec = do(e, http.MethodPost, "/api/v1/tasks?wait=true", `{"id":"x","type":"hash"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusAndWorkers(t *testing.T) {
	q := &stubQueue{
		status:  taskqueue.QueueStatus{Queued: 2, Running: 1, Workers: 1, MaxWorkers: 4},
		workers: []taskqueue.WorkerInfo{{ID: 1, PID: 42, Ready: true}},
	}
	e := newTestServer(q, "")

	rec := do(e, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status taskqueue.QueueStatus
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &status))
	assert.Equal(t, q.status, status)

	rec = do(e, http.MethodGet, "/api/v1/workers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var workers []taskqueue.WorkerInfo
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &workers))
	require.Len(t, workers, 1)
	assert.Equal(t, 42, workers[0].PID)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestServer(&stubQueue{}, "secret")

	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediaq_workers")
}

func sign(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "desktop-ui",
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTMiddleware(t *testing.T) {
	e := newTestServer(&stubQueue{}, "secret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad signature", "Bearer " + sign(t, "other", time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "secret", time.Now().Add(-time.Hour)), http.StatusUnauthorized},
		{"valid", "Bearer " + sign(t, "secret", time.Now().Add(time.Hour)), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.header != "" {
				headers = []string{echo.HeaderAuthorization, tt.header}
			}
			rec := do(e, http.MethodGet, "/api/v1/status", "", headers...)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestSubjectFromContext(t *testing.T) {
	e := echo.New()
	var subject string
	e.GET("/", func(c echo.Context) error {
		subject = SubjectFromContext(c)
		return c.NoContent(http.StatusOK)
	}, JWTMiddleware([]byte("secret")))

	do(e, http.MethodGet, "/", "", echo.HeaderAuthorization, "Bearer "+sign(t, "secret", time.Now().Add(time.Hour)))
	assert.Equal(t, "desktop-ui", subject)
}

func TestSubmit_LogsSubject(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := newLoggedTestServer(&stubQueue{}, "secret", logger.Wrap(zap.New(core)))

	rec := do(e, http.MethodPost, "/api/v1/tasks", `{"type":"hash"}`,
		echo.HeaderAuthorization, "Bearer "+sign(t, "secret", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	entries := logs.FilterMessage("Task submitted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "desktop-ui", fields["subject"])
	assert.Equal(t, "task-1", fields["task_id"])
	assert.Equal(t, "hash", fields["task_type"])
}
