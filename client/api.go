package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Register creates an account and signs the session in.
func (c *Client) Register(ctx context.Context, name, email, password string) (User, error) {
	var resp sessionResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/api/auth/register", body, &resp, nil); err != nil {
		return User{}, err
	}
	return resp.User, c.session.Set(resp.Token)
}

func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp sessionResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.Do(ctx, http.MethodPost, "/api/auth/login", body, &resp, nil); err != nil {
		return User{}, err
	}
	return resp.User, c.session.Set(resp.Token)
}

// Logout only forgets the token: the server keeps no session to end.
func (c *Client) Logout() error {
	return c.session.Clear()
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &resp, nil)
	return resp.User, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	return c.Do(ctx, http.MethodPut, "/api/auth/password", body, nil, nil)
}

type noteResponse struct {
	Note Note `json:"note"`
}

func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	var resp struct {
		Notes []Note `json:"notes"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/notes", nil, &resp, nil)
	return resp.Notes, err
}

func (c *Client) CreateNote(ctx context.Context, title, content string, tags []string) (Note, error) {
	var resp noteResponse
	body := map[string]interface{}{"title": title, "content": content, "tags": tags}
	err := c.Do(ctx, http.MethodPost, "/api/notes", body, &resp, idempotencyKey())
	return resp.Note, err
}

func (c *Client) GetNote(ctx context.Context, id string) (Note, error) {
	var resp noteResponse
	err := c.Do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id), nil, &resp, nil)
	return resp.Note, err
}

func (c *Client) UpdateNote(ctx context.Context, id string, update NoteUpdate) (Note, error) {
	var resp noteResponse
	err := c.Do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), update, &resp, nil)
	return resp.Note, err
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil, nil)
}

type doubtResponse struct {
	Doubt Doubt `json:"doubt"`
}

func (c *Client) ListDoubts(ctx context.Context, filter DoubtFilter) ([]Doubt, error) {
	query := url.Values{}
	if filter.Mine {
		query.Set("mine", "true")
	}
	if filter.Tag != "" {
		query.Set("tag", filter.Tag)
	}
	if filter.Query != "" {
		query.Set("q", filter.Query)
	}
	path := "/api/doubts"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp struct {
		Doubts []Doubt `json:"doubts"`
	}
	err := c.Do(ctx, http.MethodGet, path, nil, &resp, nil)
	return resp.Doubts, err
}

func (c *Client) CreateDoubt(ctx context.Context, question, description string, tags []string) (Doubt, error) {
	var resp doubtResponse
	body := map[string]interface{}{"question": question, "description": description, "tags": tags}
	err := c.Do(ctx, http.MethodPost, "/api/doubts", body, &resp, idempotencyKey())
	return resp.Doubt, err
}

func (c *Client) GetDoubt(ctx context.Context, id string) (Doubt, error) {
	var resp doubtResponse
	err := c.Do(ctx, http.MethodGet, "/api/doubts/"+url.PathEscape(id), nil, &resp, nil)
	return resp.Doubt, err
}

func (c *Client) UpdateDoubt(ctx context.Context, id string, update DoubtUpdate) (Doubt, error) {
	var resp doubtResponse
	err := c.Do(ctx, http.MethodPut, "/api/doubts/"+url.PathEscape(id), update, &resp, nil)
	return resp.Doubt, err
}

func (c *Client) DeleteDoubt(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/api/doubts/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) AddAnswer(ctx context.Context, doubtID, text string) (Doubt, error) {
	var resp doubtResponse
	path := "/api/doubts/" + url.PathEscape(doubtID) + "/answers"
	err := c.Do(ctx, http.MethodPost, path, map[string]string{"text": text}, &resp, idempotencyKey())
	return resp.Doubt, err
}

func (c *Client) DeleteAnswer(ctx context.Context, doubtID, answerID string) (Doubt, error) {
	var resp doubtResponse
	path := "/api/doubts/" + url.PathEscape(doubtID) + "/answers/" + url.PathEscape(answerID)
	err := c.Do(ctx, http.MethodDelete, path, nil, &resp, nil)
	return resp.Doubt, err
}

// AcceptAnswer is a POST without an idempotency key, so it is never retried.
func (c *Client) AcceptAnswer(ctx context.Context, doubtID, answerID string) (Doubt, error) {
	var resp doubtResponse
	path := "/api/doubts/" + url.PathEscape(doubtID) + "/answers/" + url.PathEscape(answerID) + "/accept"
	err := c.Do(ctx, http.MethodPost, path, nil, &resp, nil)
	return resp.Doubt, err
}

type timetableResponse struct {
	Timetable Timetable `json:"timetable"`
}

func (c *Client) GetTimetable(ctx context.Context) (Timetable, error) {
	var resp timetableResponse
	err := c.Do(ctx, http.MethodGet, "/api/timetable", nil, &resp, nil)
	return resp.Timetable, err
}

// SaveTimetable replaces the schedule. A non-zero updatedAt enables the
// staleness check. The call is a full replacement, so it carries an
// idempotency key and may be retried.
func (c *Client) SaveTimetable(ctx context.Context, schedule []TimetableEntry, updatedAt time.Time) (Timetable, error) {
	body := struct {
		Schedule  []TimetableEntry `json:"schedule"`
		UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
	}{Schedule: schedule}
	if schedule == nil {
		body.Schedule = []TimetableEntry{}
	}
	if !updatedAt.IsZero() {
		body.UpdatedAt = &updatedAt
	}
	var resp timetableResponse
	err := c.Do(ctx, http.MethodPost, "/api/timetable", body, &resp, idempotencyKey())
	return resp.Timetable, err
}

func (c *Client) Courses(ctx context.Context) ([]Course, error) {
	var resp struct {
		Courses []Course `json:"courses"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/courses", nil, &resp, nil)
	return resp.Courses, err
}

func (c *Client) AdminStats(ctx context.Context) (Stats, error) {
	var resp struct {
		Stats Stats `json:"stats"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/admin/stats", nil, &resp, nil)
	return resp.Stats, err
}

func (c *Client) AdminUsers(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/admin/users", nil, &resp, nil)
	return resp.Users, err
}

func (c *Client) AdminSetRole(ctx context.Context, userID, role string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	path := "/api/admin/users/" + url.PathEscape(userID) + "/role"
	err := c.Do(ctx, http.MethodPut, path, map[string]string{"role": role}, &resp, nil)
	return resp.User, err
}

func (c *Client) AdminNotes(ctx context.Context) ([]Note, error) {
	var resp struct {
		Notes []Note `json:"notes"`
	}
	err := c.Do(ctx, http.MethodGet, "/api/admin/notes", nil, &resp, nil)
	return resp.Notes, err
}

func idempotencyKey() http.Header {
	header := http.Header{}
	header.Set(idempotencyHeader, uuid.NewString())
	return header
}
