package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/docstore"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

type createDoubtRequest struct {
	Question    string   `json:"question"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type updateDoubtRequest struct {
	Question    *string    `json:"question"`
	Description *string    `json:"description"`
	Tags        *[]string  `json:"tags"`
	Resolved    *bool      `json:"resolved"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

type createAnswerRequest struct {
	Text string `json:"text"`
}

func doubtNotFound() *apperr.Error {
	return apperr.New(apperr.NotFound, "doubt_not_found", "doubt not found")
}

func answerNotFound() *apperr.Error {
	return apperr.New(apperr.NotFound, "answer_not_found", "answer not found")
}

func (s *Server) handleListDoubts(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := repository.DoubtFilter{
		Tag:   query.Get("tag"),
		Query: query.Get("q"),
		Limit: parseLimit(r, 0),
	}
	if query.Get("mine") == "true" {
		filter.Owner = identity.ID
	}
	doubts, err := s.repos.Doubts.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "doubts": doubts})
}

func (s *Server) handleCreateDoubt(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createDoubtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("question", req.Question, maxQuestionLen)
	c.optional("description", req.Description, maxTextLen)
	tags := c.tags("tags", req.Tags)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	doubt, err := s.repos.Doubts.Create(r.Context(), model.Doubt{
		Owner:       identity.ID,
		OwnerName:   identity.Name,
		Question:    strings.TrimSpace(req.Question),
		Description: req.Description,
		Tags:        tags,
	})
	if err != nil {
		s.fail(w, r, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "doubt": doubt})
}

func (s *Server) handleGetDoubt(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}
	doubt, err := s.repos.Doubts.Get(r.Context(), chi.URLParam(r, "doubtId"))
	if err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "doubt": doubt})
}

func (s *Server) handleUpdateDoubt(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req updateDoubtRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	doubt, err := s.ownedDoubt(r.Context(), identity, chi.URLParam(r, "doubtId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var c checks
	if req.Question != nil {
		c.required("question", *req.Question, maxQuestionLen)
		doubt.Question = strings.TrimSpace(*req.Question)
	}
	if req.Description != nil {
		c.optional("description", *req.Description, maxTextLen)
		doubt.Description = *req.Description
	}
	if req.Tags != nil {
		doubt.Tags = c.tags("tags", *req.Tags)
	}
	if req.Resolved != nil {
		doubt.Resolved = *req.Resolved
	}
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	expected := doubt.UpdatedAt
	if req.UpdatedAt != nil {
		expected = *req.UpdatedAt
	}
	updated, err := s.repos.Doubts.Update(r.Context(), doubt, expected)
	if err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "doubt": updated})
}

func (s *Server) handleDeleteDoubt(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	doubt, err := s.ownedDoubt(r.Context(), identity, chi.URLParam(r, "doubtId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.repos.Doubts.Delete(r.Context(), doubt.ID); err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var c checks
	c.required("text", req.Text, maxTextLen)
	if err := c.err(); err != nil {
		s.fail(w, r, err)
		return
	}

	answer := model.Answer{
		ID:         uuid.NewString(),
		Author:     identity.ID,
		AuthorName: identity.Name,
		Text:       strings.TrimSpace(req.Text),
		CreatedAt:  docstore.Now(),
	}
	doubt, err := s.repos.Doubts.Mutate(r.Context(), chi.URLParam(r, "doubtId"), func(d *model.Doubt) error {
		d.Answers = append(d.Answers, answer)
		return nil
	})
	if err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "doubt": doubt})
}

// handleDeleteAnswer lets the answer's author or an admin remove it. Removing
// the accepted answer reopens the doubt.
func (s *Server) handleDeleteAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	answerID := chi.URLParam(r, "answerId")
	doubt, err := s.repos.Doubts.Mutate(r.Context(), chi.URLParam(r, "doubtId"), func(d *model.Doubt) error {
		idx := findAnswer(d.Answers, answerID)
		if idx < 0 {
			return answerNotFound()
		}
		if err := auth.AuthorizeOwner(identity, d.Answers[idx].Author); err != nil {
			return err
		}
		if d.Answers[idx].Accepted {
			d.Resolved = false
		}
		d.Answers = append(d.Answers[:idx], d.Answers[idx+1:]...)
		return nil
	})
	if err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "doubt": doubt})
}

// handleAcceptAnswer marks one answer as accepted and resolves the doubt. The
// doubt's owner and teachers may accept.
func (s *Server) handleAcceptAnswer(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}
	answerID := chi.URLParam(r, "answerId")
	doubt, err := s.repos.Doubts.Mutate(r.Context(), chi.URLParam(r, "doubtId"), func(d *model.Doubt) error {
		if err := auth.AuthorizeOwnerOrRole(identity, d.Owner, model.RoleTeacher); err != nil {
			return err
		}
		idx := findAnswer(d.Answers, answerID)
		if idx < 0 {
			return answerNotFound()
		}
		for i := range d.Answers {
			d.Answers[i].Accepted = i == idx
		}
		d.Resolved = true
		return nil
	})
	if err != nil {
		s.fail(w, r, storeError(err, doubtNotFound()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "doubt": doubt})
}

func (s *Server) ownedDoubt(ctx context.Context, identity *model.Identity, id string) (model.Doubt, error) {
	doubt, err := s.repos.Doubts.Get(ctx, id)
	if err != nil {
		return model.Doubt{}, storeError(err, doubtNotFound())
	}
	if err := auth.AuthorizeOwner(identity, doubt.Owner); err != nil {
		return model.Doubt{}, err
	}
	return doubt, nil
}

func findAnswer(answers []model.Answer, id string) int {
	for i, answer := range answers {
		if answer.ID == id {
			return i
		}
	}
	return -1
}
