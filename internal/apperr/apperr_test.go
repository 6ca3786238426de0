package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestKindMapping(t *testing.T) {
	tts := []struct {
		kind   Kind
		status int
		code   codes.Code
	}{
		{Unauthenticated, http.StatusUnauthorized, codes.Unauthenticated},
		{Forbidden, http.StatusForbidden, codes.PermissionDenied},
		{Validation, http.StatusBadRequest, codes.InvalidArgument},
		{NotFound, http.StatusNotFound, codes.NotFound},
		{Conflict, http.StatusConflict, codes.Aborted},
		{RateLimited, http.StatusTooManyRequests, codes.ResourceExhausted},
		{Transient, http.StatusServiceUnavailable, codes.Unavailable},
		{Unexpected, http.StatusInternalServerError, codes.Internal},
		{Kind("bogus"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tts {
		assert.Equal(t, tt.status, HTTPStatus(tt.kind), "status for %s", tt.kind)
		assert.Equal(t, tt.code, GRPCCode(tt.kind), "grpc code for %s", tt.kind)
	}
}

func TestAsClassifiesUnknownErrors(t *testing.T) {
	cause := errors.New("pq: connection reset")
	err := As(cause)

	assert.Equal(t, Unexpected, err.Kind)
	assert.NotContains(t, err.Message, "connection reset")
	assert.ErrorIs(t, err, cause)
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("update note: %w", Denied())

	assert.Equal(t, Forbidden, KindOf(err))
	assert.True(t, Is(err, Forbidden))
	assert.False(t, Is(nil, Forbidden))
	assert.Nil(t, As(nil))
}

func TestInvalidCarriesFields(t *testing.T) {
	err := Invalid(FieldError{Field: "title", Msg: "title is required"})

	assert.Equal(t, Validation, err.Kind)
	assert.Len(t, err.Fields, 1)
	assert.Equal(t, "title", err.Fields[0].Field)
}
