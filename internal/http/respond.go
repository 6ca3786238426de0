package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

type errorResponse struct {
	Success bool                `json:"success"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// fail renders err. Unexpected errors are logged with their cause and rendered
// with a generic message only.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.As(err)
	if appErr.Kind == apperr.Unexpected {
		s.log.WithError(err).
			WithField("request_id", middleware.GetReqID(r.Context())).
			Error("request failed")
	}
	writeJSON(w, apperr.HTTPStatus(appErr.Kind), errorResponse{
		Success: false,
		Code:    appErr.Code,
		Message: appErr.Message,
		Errors:  appErr.Fields,
	})
}

// storeError maps repository sentinels. notFound decides how a missing
// document is reported.
func storeError(err error, notFound *apperr.Error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound
	case errors.Is(err, repository.ErrConflict):
		return apperr.New(apperr.Conflict, "stale_write", "this item was changed elsewhere, reload it and try again")
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.New(apperr.Conflict, "duplicate", "this item already exists")
	default:
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.Internal(err)
	}
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (*model.Identity, bool) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		s.fail(w, r, apperr.MissingToken())
		return nil, false
	}
	return identity, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.Validation, "invalid_request", "request body is required")
		}
		return apperr.New(apperr.Validation, "invalid_request", "request body is not valid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}
