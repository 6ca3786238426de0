package client

import (
	"fmt"
	"strings"
)

// Kind classifies every failed call. It mirrors the server taxonomy and adds
// nothing the caller has to translate again.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	Forbidden       Kind = "forbidden"
	Validation      Kind = "validation"
	NotFound        Kind = "not_found"
	Conflict        Kind = "conflict"
	RateLimited     Kind = "rate_limited"
	Transient       Kind = "transient"
	Unexpected      Kind = "unexpected"
)

type FieldError struct {
	Field string `json:"field,omitempty"`
	Msg   string `json:"msg"`
}

type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Conflict reports a stale write. Callers must ask before overwriting.
func (e *Error) Conflict() bool {
	return e.Kind == Conflict
}

// UserMessage is the text to show a person. Server details are only passed
// through for kinds where they are meant for the user.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case Unauthenticated:
		return "Your session has expired. Please sign in again."
	case Forbidden:
		return "You are not allowed to do that."
	case Validation:
		if len(e.Fields) == 0 {
			return orDefault(e.Message, "Please check the form and try again.")
		}
		msgs := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			msgs = append(msgs, f.Msg)
		}
		return strings.Join(msgs, "\n")
	case NotFound:
		return "This item no longer exists."
	case Conflict:
		return "This item was changed somewhere else. Reload it, or overwrite the other changes."
	case RateLimited:
		return "Too many attempts. Please wait a moment and try again."
	case Transient:
		return "Cannot reach the server. Check your connection and try again."
	default:
		return "Something went wrong. Please try again later."
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func kindForStatus(status int) Kind {
	switch {
	case status == 400 || status == 422:
		return Validation
	case status == 401:
		return Unauthenticated
	case status == 403:
		return Forbidden
	case status == 404:
		return NotFound
	case status == 409:
		return Conflict
	case status == 429:
		return RateLimited
	default:
		return Unexpected
	}
}
