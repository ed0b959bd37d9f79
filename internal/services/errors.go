package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrTooLarge      = errors.New("payload too large")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Error is a classified failure produced by Wrap.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Marker, e.Err}
	}
	return []error{e.Marker}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{Marker: marker, Stage: stage, Operation: operation, Message: message, Err: err}
}

// Reason returns the message given to the outermost Wrap, falling back to
// Message when err was not produced by Wrap.
func Reason(err error) string {
	var se *Error
	if errors.As(err, &se) {
		if msg := strings.TrimSpace(se.Message); msg != "" {
			return msg
		}
	}
	return Message(err)
}

// Message strips the marker prefix and returns the detail of a wrapped error,
// suitable for client-facing responses.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{
		ErrExternalTool, ErrValidation, ErrUnauthorized, ErrConfiguration,
		ErrNotFound, ErrConflict, ErrTooLarge, ErrTimeout, ErrTransient,
	} {
		prefix := marker.Error() + ": "
		if errors.Is(err, marker) && strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
