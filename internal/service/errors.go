package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already taken")
)

// NotFoundError reports a missing user or book. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
	// Reason replaces the default "not found" suffix, e.g. "is already sold".
	Reason string
}

func (e *NotFoundError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "not found"
	}
	return fmt.Sprintf("%s with id: %s %s", e.Entity, e.ID, reason)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func userNotFound(id string) error {
	return &NotFoundError{Entity: "User", ID: id}
}

func bookNotFound(id string) error {
	return &NotFoundError{Entity: "Book", ID: id}
}

// ValidationError carries the human readable reasons a request was rejected.
// It matches ErrValidation.
type ValidationError struct {
	Messages []string
}

func newValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	switch len(e.Messages) {
	case 0:
		return ErrValidation.Error()
	case 1:
		return e.Messages[0]
	}
	msg := e.Messages[0]
	for _, m := range e.Messages[1:] {
		msg += "; " + m
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
