package errorsx

import (
	"errors"
	"fmt"
	"strings"
)

// SerializedError is the wire form of an error crossing the process boundary
type SerializedError struct {
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// RemoteError is an error rebuilt from its wire form.
// Error() returns the original message unchanged.
type RemoteError struct {
	Name    string
	Message string
	Stack   string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// StackError is implemented by errors that carry the stack they were raised with
type StackError interface {
	error
	StackTrace() string
}

// WithStack attaches a stack to err so Serialize can carry it
func WithStack(err error, stack string) error {
	if err == nil {
		return nil
	}
	return &stackError{err: err, stack: stack}
}

type stackError struct {
	err   error
	stack string
}

func (e *stackError) Error() string      { return e.err.Error() }
func (e *stackError) Unwrap() error      { return e.err }
func (e *stackError) StackTrace() string { return e.stack }

// Serialize converts err into its transportable form.
// A nil error serializes to nil.
func Serialize(err error) *SerializedError {
	if err == nil {
		return nil
	}

	s := &SerializedError{
		Name:    errorName(err),
		Message: err.Error(),
	}

	var se StackError
	if errors.As(err, &se) {
		s.Stack = se.StackTrace()
	}

	var re *RemoteError
	if errors.As(err, &re) {
		s.Name = re.Name
		if s.Stack == "" {
			s.Stack = re.Stack
		}
	}

	return s
}

// Deserialize rebuilds an error from its wire form.
// A nil value deserializes to nil.
func Deserialize(s *SerializedError) error {
	if s == nil {
		return nil
	}
	return &RemoteError{
		Name:    s.Name,
		Message: s.Message,
		Stack:   s.Stack,
	}
}

// errorName reports the concrete type of err beneath context wrappers, e.g. "*fs.PathError"
func errorName(err error) string {
	for {
		_, decorated := err.(*stackError)
		next := errors.Unwrap(err)
		if next == nil || !(decorated || isWrapper(err)) {
			return strings.TrimPrefix(fmt.Sprintf("%T", err), "*errors.")
		}
		err = next
	}
}

// isWrapper reports whether err only adds context to another error, as fmt.Errorf("...: %w") does
func isWrapper(err error) bool {
	return fmt.Sprintf("%T", err) == "*fmt.wrapError"
}
