package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/model"
)

type createNoteRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// updateNoteRequest is a partial update. UpdatedAt, when present, must match
// the stored copy.
type updateNoteRequest struct {
	Title     *string    `json:"title"`
	Content   *string    `json:"content"`
	Tags      *[]string  `json:"tags"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	notes, err := s.repos.Notes.List(r.Context(), identity.ID, parseLimit(r, 0))
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "notes": notes})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("title", req.Title, maxTitleLen)
	c.optional("content", req.Content, maxContentLen)
	tags := c.tags("tags", req.Tags)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	note, err := s.repos.Notes.Create(r.Context(), model.Note{
		Owner:   identity.ID,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
		Tags:    tags,
	})
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "note": note})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	note, err := s.ownedNote(r.Context(), identity, chi.URLParam(r, "noteId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "note": note})
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	note, err := s.ownedNote(r.Context(), identity, chi.URLParam(r, "noteId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var c checks
	if req.Title != nil {
		c.required("title", *req.Title, maxTitleLen)
		note.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		c.optional("content", *req.Content, maxContentLen)
		note.Content = *req.Content
	}
	if req.Tags != nil {
		note.Tags = c.tags("tags", *req.Tags)
	}
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	expected := note.UpdatedAt
	if req.UpdatedAt != nil {
		expected = *req.UpdatedAt
	}
	updated, err := s.repos.Notes.Update(r.Context(), note, expected)
	if err != nil {
		s.fail(w, r, storeError(err, apperr.Denied()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "note": updated})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	note, err := s.ownedNote(r.Context(), identity, chi.URLParam(r, "noteId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.repos.Notes.Delete(r.Context(), note.ID); err != nil {
		s.fail(w, r, storeError(err, apperr.Denied()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ownedNote loads a note the caller may touch. A missing note is reported the
// same way as a foreign one.
func (s *Server) ownedNote(ctx context.Context, identity *model.Identity, id string) (model.Note, error) {
	note, err := s.repos.Notes.Get(ctx, id)
	if err != nil {
		return model.Note{}, storeError(err, apperr.Denied())
	}
	if err := auth.AuthorizeOwner(identity, note.Owner); err != nil {
		return model.Note{}, err
	}
	return note, nil
}
