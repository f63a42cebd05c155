// Package ipc defines the message protocol spoken between the task queue
// controller and its worker processes.
//
// Each message is a single JSON object on its own line, discriminated by
// its "type" field:
//
//	controller -> worker: {"type":"execute","taskId":...,"taskType":...,"data":...}
//	worker -> controller: {"type":"worker-ready"}
//	worker -> controller: {"type":"task-completed","taskId":...,"result":{"status":"failed","error":{...}}}
//	worker -> controller: {"type":"task-message","taskId":...,"message":...}
//
// A task-completed result without a status is a success.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"mediaq/internal/pkg/errorsx"
)

// Kind discriminates wire messages
type Kind string

const (
	KindExecute       Kind = "execute"
	KindWorkerReady   Kind = "worker-ready"
	KindTaskCompleted Kind = "task-completed"
	KindTaskMessage   Kind = "task-message"
)

// StatusFailed marks a failed task-completed result
const StatusFailed = "failed"

var (
	// ErrUnknownKind is returned when decoding a message whose type is not part of the protocol
	ErrUnknownKind = errors.New("ipc: unknown message type")

	// ErrMalformed is returned when a message is missing a field its type requires
	ErrMalformed = errors.New("ipc: malformed message")
)

// Message is one of Execute, WorkerReady, TaskCompleted or TaskMessage
type Message interface {
	Kind() Kind
	message()
}

// Execute asks a worker to run a task
type Execute struct {
	TaskID   string
	TaskType string
	Data     json.RawMessage
}

// WorkerReady is sent once by a worker after boot, before it accepts work
type WorkerReady struct{}

// TaskCompleted carries the terminal result of a task
type TaskCompleted struct {
	TaskID string
	Result Result
}

// TaskMessage carries an intermediate, application-defined progress payload
type TaskMessage struct {
	TaskID  string
	Message json.RawMessage
}

// Result is the outcome part of a TaskCompleted message
type Result struct {
	Status  string                   `json:"status,omitempty"`
	Outputs json.RawMessage          `json:"outputs,omitempty"`
	Error   *errorsx.SerializedError `json:"error,omitempty"`
}

// Failed reports whether the result claims failure
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Succeeded builds a success result
func Succeeded(outputs json.RawMessage) Result {
	return Result{Outputs: outputs}
}

// Failure builds a failed result carrying err
func Failure(err error) Result {
	return Result{Status: StatusFailed, Error: errorsx.Serialize(err)}
}

func (Execute) Kind() Kind       { return KindExecute }
func (WorkerReady) Kind() Kind   { return KindWorkerReady }
func (TaskCompleted) Kind() Kind { return KindTaskCompleted }
func (TaskMessage) Kind() Kind   { return KindTaskMessage }

func (Execute) message()       {}
func (WorkerReady) message()   {}
func (TaskCompleted) message() {}
func (TaskMessage) message()   {}

// envelope is the flat JSON shape of every message
type envelope struct {
	Type     Kind            `json:"type"`
	TaskID   string          `json:"taskId,omitempty"`
	TaskType string          `json:"taskType,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Result   *Result         `json:"result,omitempty"`
	Message  json.RawMessage `json:"message,omitempty"`
}

func toEnvelope(m Message) (envelope, error) {
	switch m := m.(type) {
	case Execute:
		return envelope{Type: KindExecute, TaskID: m.TaskID, TaskType: m.TaskType, Data: m.Data}, nil
	case WorkerReady:
		return envelope{Type: KindWorkerReady}, nil
	case TaskCompleted:
		result := m.Result
		return envelope{Type: KindTaskCompleted, TaskID: m.TaskID, Result: &result}, nil
	case TaskMessage:
		return envelope{Type: KindTaskMessage, TaskID: m.TaskID, Message: m.Message}, nil
	default:
		return envelope{}, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}
}

func (e envelope) toMessage() (Message, error) {
	switch e.Type {
	case KindExecute:
		if e.TaskID == "" || e.TaskType == "" {
			return nil, fmt.Errorf("%w: execute requires taskId and taskType", ErrMalformed)
		}
		return Execute{TaskID: e.TaskID, TaskType: e.TaskType, Data: e.Data}, nil
	case KindWorkerReady:
		return WorkerReady{}, nil
	case KindTaskCompleted:
		if e.TaskID == "" {
			return nil, fmt.Errorf("%w: task-completed requires taskId", ErrMalformed)
		}
		var result Result
		if e.Result != nil {
			result = *e.Result
		}
		return TaskCompleted{TaskID: e.TaskID, Result: result}, nil
	case KindTaskMessage:
		if e.TaskID == "" {
			return nil, fmt.Errorf("%w: task-message requires taskId", ErrMalformed)
		}
		return TaskMessage{TaskID: e.TaskID, Message: e.Message}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Type)
	}
}

// Marshal encodes m as a single JSON object
func Marshal(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unmarshal decodes one JSON object into its Message
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.toMessage()
}

// PayloadType extracts the optional string "type" discriminator of an
// application-defined message payload.
func PayloadType(payload json.RawMessage) (string, bool) {
	var probe struct {
		Type *string `json:"type"`
	}
	if len(payload) == 0 || json.Unmarshal(payload, &probe) != nil || probe.Type == nil {
		return "", false
	}
	return *probe.Type, true
}
