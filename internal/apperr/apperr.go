// Package apperr is the server-side error taxonomy. Every error that reaches a
// transport is classified into a Kind, which fixes its HTTP status and gRPC code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

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

// FieldError is one failed input check.
type FieldError struct {
	Field string `json:"field,omitempty"`
	Msg   string `json:"msg"`
}

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause. The cause is logged by transports, never rendered.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

func Invalid(fields ...FieldError) *Error {
	return &Error{Kind: Validation, Code: "validation_failed", Message: "invalid request", Fields: fields}
}

func MissingToken() *Error {
	return New(Unauthenticated, "missing_token", "authentication required")
}

func InvalidToken() *Error {
	return New(Unauthenticated, "invalid_token", "invalid or expired token")
}

func Denied() *Error {
	return New(Forbidden, "forbidden", "you are not allowed to perform this action")
}

// Internal hides err behind a generic message.
func Internal(err error) *Error {
	return Wrap(Unexpected, "server_error", "something went wrong, please try again later", err)
}

// As returns err as an *Error, classifying anything unknown as Unexpected.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case Transient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func GRPCCode(kind Kind) codes.Code {
	switch kind {
	case Unauthenticated:
		return codes.Unauthenticated
	case Forbidden:
		return codes.PermissionDenied
	case Validation:
		return codes.InvalidArgument
	case NotFound:
		return codes.NotFound
	case Conflict:
		return codes.Aborted
	case RateLimited:
		return codes.ResourceExhausted
	case Transient:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
