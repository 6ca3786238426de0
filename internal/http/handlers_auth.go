package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"studyhub/internal/apperr"
	"studyhub/internal/crypto"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sessionResponse struct {
	Success   bool           `json:"success"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      model.UserView `json:"user"`
}

func invalidCredentials() *apperr.Error {
	return apperr.New(apperr.Unauthenticated, "invalid_credentials", "invalid email or password")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("name", req.Name, maxNameLen)
	c.email("email", req.Email)
	c.password("password", req.Password, s.cfg.PasswordMinLen)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	user, err := s.repos.Users.Create(r.Context(), model.User{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         model.RoleStudent,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.fail(w, r, apperr.Invalid(apperr.FieldError{Field: "email", Msg: "an account with this email already exists"}))
			return
		}
		s.fail(w, r, apperr.Internal(err))
		return
	}
	s.log.WithField("user_id", user.ID).Info("user registered")
	s.writeSession(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("email", req.Email, 320)
	c.required("password", req.Password, maxPasswordLen)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.repos.Users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = crypto.CheckUnknownPassword(req.Password)
			s.fail(w, r, invalidCredentials())
			return
		}
		s.fail(w, r, apperr.Internal(err))
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.fail(w, r, invalidCredentials())
		return
	}
	s.writeSession(w, r, http.StatusOK, user)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, user model.User) {
	token, expiresAt, err := s.codec.Issue(user.ID)
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, status, sessionResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.View(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	user, err := s.repos.Users.GetByID(r.Context(), identity.ID)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.InvalidToken()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user.View()})
}

// handleChangePassword rotates the secret. Tokens already issued stay valid
// until they expire.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("currentPassword", req.CurrentPassword, maxPasswordLen)
	c.password("newPassword", req.NewPassword, s.cfg.PasswordMinLen)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.repos.Users.GetByID(r.Context(), identity.ID)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.InvalidToken()))
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		s.fail(w, r, apperr.Invalid(apperr.FieldError{Field: "currentPassword", Msg: "current password is incorrect"}))
		return
	}
	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	user.PasswordHash = hash
	if _, err := s.repos.Users.Update(r.Context(), user); err != nil {
		s.fail(w, r, storeError(err, apperr.InvalidToken()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
