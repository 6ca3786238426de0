package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"studyhub/internal/apperr"
	"studyhub/internal/model"
)

type setRoleRequest struct {
	Role model.Role `json:"role"`
}

type statsResponse struct {
	Users      int `json:"users"`
	Notes      int `json:"notes"`
	Doubts     int `json:"doubts"`
	Timetables int `json:"timetables"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var stats statsResponse
	counts := []struct {
		into  *int
		count func() (int, error)
	}{
		{&stats.Users, func() (int, error) { return s.repos.Users.Count(ctx) }},
		{&stats.Notes, func() (int, error) { return s.repos.Notes.Count(ctx) }},
		{&stats.Doubts, func() (int, error) { return s.repos.Doubts.Count(ctx) }},
		{&stats.Timetables, func() (int, error) { return s.repos.Timetables.Count(ctx) }},
	}
	for _, c := range counts {
		n, err := c.count()
		if err != nil {
			s.fail(w, r, apperr.Internal(err))
			return
		}
		*c.into = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repos.Users.List(r.Context(), parseLimit(r, 0))
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	views := make([]model.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, user.View())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "users": views})
}

// handleAdminSetRole never changes the caller's own role.
func (s *Server) handleAdminSetRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req setRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !req.Role.Valid() {
		s.fail(w, r, apperr.Invalid(apperr.FieldError{Field: "role", Msg: "role must be student, teacher or admin"}))
		return
	}
	userID := chi.URLParam(r, "userId")
	if userID == identity.ID {
		s.fail(w, r, apperr.New(apperr.Forbidden, "own_role", "you cannot change your own role"))
		return
	}

	user, err := s.repos.Users.GetByID(r.Context(), userID)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.New(apperr.NotFound, "user_not_found", "user not found")))
		return
	}
	user.Role = req.Role
	updated, err := s.repos.Users.Update(r.Context(), user)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.New(apperr.NotFound, "user_not_found", "user not found")))
		return
	}
	s.log.WithFields(logrus.Fields{"user_id": updated.ID, "role": updated.Role, "by": identity.ID}).Info("role changed")
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": updated.View()})
}

func (s *Server) handleAdminListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.repos.Notes.List(r.Context(), r.URL.Query().Get("owner"), parseLimit(r, 0))
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "notes": notes})
}
