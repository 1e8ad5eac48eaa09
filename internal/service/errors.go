package service

import (
	"errors"
	"fmt"

	"github.com/shaharia-lab/emitter/emitter"
)

// Error classes matched with errors.Is. The API maps each onto a status code.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInvalid  = errors.New("invalid request")
)

// NotFoundError names a subscriber (or other resource) that is not registered.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is returned when a caller-chosen subscriber ID is taken.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ValidationError reports a rejected request field. Err, when set, is the
// underlying cause: a selector compile error or an emitter.ErrInvalidListener.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field == "" {
		return msg
	}
	return e.Field + ": " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

func invalidSelector(err error) *ValidationError {
	return &ValidationError{Field: "selector", Err: err}
}

// subscribeError classifies an error from emitter.Subscribe. A rejected
// listener is the caller's fault; anything else is wrapped as is.
func subscribeError(id string, err error) error {
	if errors.Is(err, emitter.ErrInvalidListener) {
		return &ValidationError{Field: "listener", Err: err}
	}
	return fmt.Errorf("subscribing %q: %w", id, err)
}
