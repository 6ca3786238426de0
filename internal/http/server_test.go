package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/apperr"
	"studyhub/internal/auth"
	"studyhub/internal/config"
	"studyhub/internal/docstore"
	"studyhub/internal/idempotency"
	"studyhub/internal/log"
	"studyhub/internal/model"
	"studyhub/internal/ratelimit"
	"studyhub/internal/repository"
)

type envelope struct {
	Success   bool                `json:"success"`
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	Errors    []apperr.FieldError `json:"errors"`
	Token     string              `json:"token"`
	User      model.UserView      `json:"user"`
	Users     []model.UserView    `json:"users"`
	Note      model.Note          `json:"note"`
	Notes     []model.Note        `json:"notes"`
	Doubt     model.Doubt         `json:"doubt"`
	Doubts    []model.Doubt       `json:"doubts"`
	Timetable model.Timetable     `json:"timetable"`
	Stats     statsResponse       `json:"stats"`
	Courses   []model.Course      `json:"courses"`
}

type harness struct {
	t      *testing.T
	server *Server
	srv    *httptest.Server
	repos  *repository.Repositories
}

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         config.DriverMemory,
		JWTSecret:           "test-secret",
		JWTIssuer:           "studyhub",
		TokenTTL:            time.Hour,
		AuthRateLimitPerMin: 100,
		IdempotencyTTL:      time.Hour,
		RequestTimeout:      5 * time.Second,
		PasswordMinLen:      8,
	}
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	cfg := testConfig()
	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	require.NoError(t, err)
	repos := repository.New(docstore.NewMemoryStore())

	deps := Deps{Config: cfg, Log: log.Discard(), Repos: repos, Codec: codec}
	for _, fn := range mutate {
		fn(&deps)
	}
	server := NewServer(deps)
	srv := httptest.NewServer(server.Router())
	t.Cleanup(srv.Close)
	return &harness{t: t, server: server, srv: srv, repos: repos}
}

func (h *harness) do(method, path, token string, body interface{}, headers ...string) (*http.Response, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func (h *harness) register(name, email string) (string, model.UserView) {
	h.t.Helper()
	resp, env := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "correct-horse",
	})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode, env.Message)
	require.NotEmpty(h.t, env.Token)
	return env.Token, env.User
}

func (h *harness) promote(userID string, role model.Role) {
	h.t.Helper()
	user, err := h.repos.Users.GetByID(context.Background(), userID)
	require.NoError(h.t, err)
	user.Role = role
	_, err = h.repos.Users.Update(context.Background(), user)
	require.NoError(h.t, err)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareRejectsBeforeHandler(t *testing.T) {
	h := newHarness(t)
	called := false
	spy := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	handler := h.server.authMiddleware(spy)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, called, "handler must not run")
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Code)
		})
	}
}

func TestTokenForDeletedUserIsRejected(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Ghost", "ghost@example.com")

	// An empty credential store: the token still verifies but names nobody.
	h.server.gate = auth.NewGate(h.server.codec, repository.New(docstore.NewMemoryStore()).Users)

	resp, env := h.do(http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unknown_user", env.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	token, user := h.register("Alice", "Alice@Example.com")
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, model.RoleStudent, user.Role)

	resp, env := h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, user.ID, env.User.ID)

	resp, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, env.Token)

	resp, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", env.Code)

	resp, env = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", env.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	resp, env := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "", "email": "nope", "password": "short"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_failed", env.Code)
	fields := map[string]bool{}
	for _, fe := range env.Errors {
		fields[fe.Field] = true
	}
	assert.Equal(t, map[string]bool{"name": true, "email": true, "password": true}, fields)

	resp, env = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "a@example.com", "password": "correct-horse", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields such as role are rejected")
	assert.Equal(t, "invalid_request", env.Code)

	h.register("A", "a@example.com")
	resp, env = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "A@example.com", "password": "correct-horse"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "email", env.Errors[0].Field)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	token, _ := h.register("Alice", "alice@example.com")

	resp, env := h.do(http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "wrong-one", "newPassword": "battery-staple"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "currentPassword", env.Errors[0].Field)

	resp, _ = h.do(http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "correct-horse", "newPassword": "battery-staple"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "battery-staple"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotesOwnership(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	bob, _ := h.register("Bob", "bob@example.com")

	resp, env := h.do(http.MethodPost, "/api/notes", alice, map[string]interface{}{"title": "Algebra", "content": "groups", "tags": []string{"Maths", "maths", " "}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	note := env.Note
	assert.Equal(t, []string{"maths"}, note.Tags)

	resp, env = h.do(http.MethodGet, "/api/notes/"+note.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", env.Code)

	resp, _ = h.do(http.MethodPut, "/api/notes/"+note.ID, bob, map[string]string{"title": "Defaced"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(http.MethodDelete, "/api/notes/"+note.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = h.do(http.MethodGet, "/api/notes/does-not-exist", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "absent notes look the same as foreign ones")

	_, env = h.do(http.MethodGet, "/api/notes", bob, nil)
	assert.Empty(t, env.Notes)

	resp, env = h.do(http.MethodGet, "/api/notes/"+note.ID, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Algebra", env.Note.Title)

	resp, env = h.do(http.MethodPut, "/api/notes/"+note.ID, alice, map[string]string{"content": "rings"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Algebra", env.Note.Title)
	assert.Equal(t, "rings", env.Note.Content)

	resp, _ = h.do(http.MethodDelete, "/api/notes/"+note.ID, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(http.MethodGet, "/api/notes/"+note.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminMayTouchAnyNote(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	admin, adminUser := h.register("Root", "root@example.com")
	h.promote(adminUser.ID, model.RoleAdmin)

	_, env := h.do(http.MethodPost, "/api/notes", alice, map[string]string{"title": "Algebra"})
	resp, _ := h.do(http.MethodGet, "/api/notes/"+env.Note.ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = h.do(http.MethodGet, "/api/admin/notes", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, env.Notes, 1)
}

func TestStaleNoteUpdateConflicts(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	_, env := h.do(http.MethodPost, "/api/notes", alice, map[string]string{"title": "Algebra"})
	original := env.Note

	resp, env := h.do(http.MethodPut, "/api/notes/"+original.ID, alice, map[string]interface{}{"content": "tab one", "updatedAt": original.UpdatedAt})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Note.UpdatedAt.After(original.UpdatedAt))

	resp, env = h.do(http.MethodPut, "/api/notes/"+original.ID, alice, map[string]interface{}{"content": "tab two", "updatedAt": original.UpdatedAt})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "stale_write", env.Code)

	_, env = h.do(http.MethodGet, "/api/notes/"+original.ID, alice, nil)
	assert.Equal(t, "tab one", env.Note.Content)
}

func TestIdempotentCreateReplaysFirstResponse(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	body := map[string]string{"title": "Algebra"}

	first, firstEnv := h.do(http.MethodPost, "/api/notes", alice, body, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.StatusCode)
	second, secondEnv := h.do(http.MethodPost, "/api/notes", alice, body, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, firstEnv.Note.ID, secondEnv.Note.ID)

	_, env := h.do(http.MethodGet, "/api/notes", alice, nil)
	assert.Len(t, env.Notes, 1)

	third, _ := h.do(http.MethodPost, "/api/notes", alice, body, "Idempotency-Key", "key-2")
	assert.Equal(t, http.StatusCreated, third.StatusCode)
	_, env = h.do(http.MethodGet, "/api/notes", alice, nil)
	assert.Len(t, env.Notes, 2)
}

func TestIdempotencyKeysAreScopedToCaller(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	bob, _ := h.register("Bob", "bob@example.com")

	_, a := h.do(http.MethodPost, "/api/notes", alice, map[string]string{"title": "A"}, "Idempotency-Key", "shared")
	resp, b := h.do(http.MethodPost, "/api/notes", bob, map[string]string{"title": "B"}, "Idempotency-Key", "shared")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))
	assert.NotEqual(t, a.Note.ID, b.Note.ID)
}

type stubReplayStore struct {
	state idempotency.State
	err   error
}

func (s stubReplayStore) Begin(context.Context, string) (idempotency.State, idempotency.Response, error) {
	return s.state, idempotency.Response{}, s.err
}

func (s stubReplayStore) Complete(context.Context, string, idempotency.Response) error { return s.err }

func (s stubReplayStore) Abort(context.Context, string) error { return s.err }

func TestRetryDuringOriginalRequestIsTransient(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Idempotency = stubReplayStore{state: idempotency.InFlight} })
	alice, _ := h.register("Alice", "alice@example.com")

	resp, env := h.do(http.MethodPost, "/api/notes", alice, map[string]string{"title": "Algebra"}, "Idempotency-Key", "key-1")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, requestInProgress, env.Code)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	_, env = h.do(http.MethodGet, "/api/notes", alice, nil)
	assert.Empty(t, env.Notes, "the handler must not run twice")
}

func TestReplayStoreOutageServesRequest(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Idempotency = stubReplayStore{err: errors.New("dial tcp 127.0.0.1:6379: connection refused")}
	})
	alice, _ := h.register("Alice", "alice@example.com")

	resp, env := h.do(http.MethodPost, "/api/notes", alice, map[string]string{"title": "Algebra"}, "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Message)
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, "Algebra", env.Note.Title)
}

func TestFailedRequestReleasesIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	calls := 0
	handler := middleware.Recoverer(h.server.idempotent(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		switch calls {
		case 1:
			panic("storage exploded")
		case 2:
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusCreated)
		}
	})))
	identity := model.Identity{ID: "user-1", Email: "alice@example.com", Role: model.RoleStudent}
	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/notes", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusInternalServerError, send().Code)
	assert.Equal(t, http.StatusBadRequest, send().Code, "a panic releases the reservation")
	assert.Equal(t, http.StatusCreated, send().Code, "an error response releases the reservation")
	rec := send()
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 3, calls)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t)
	student, _ := h.register("Student", "student@example.com")
	admin, adminUser := h.register("Root", "root@example.com")
	h.promote(adminUser.ID, model.RoleAdmin)

	resp, env := h.do(http.MethodGet, "/api/admin/stats", student, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "insufficient_role", env.Code)

	resp, _ = h.do(http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = h.do(http.MethodGet, "/api/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, env.Stats.Users)

	resp, env = h.do(http.MethodGet, "/api/admin/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, env.Users, 2)
}

func TestAdminSetRole(t *testing.T) {
	h := newHarness(t)
	_, student := h.register("Student", "student@example.com")
	admin, adminUser := h.register("Root", "root@example.com")
	h.promote(adminUser.ID, model.RoleAdmin)

	resp, env := h.do(http.MethodPut, "/api/admin/users/"+student.ID+"/role", admin, map[string]string{"role": "teacher"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.RoleTeacher, env.User.Role)

	resp, _ = h.do(http.MethodPut, "/api/admin/users/"+student.ID+"/role", admin, map[string]string{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(http.MethodPut, "/api/admin/users/"+adminUser.ID+"/role", admin, map[string]string{"role": "student"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, env = h.do(http.MethodPut, "/api/admin/users/missing/role", admin, map[string]string{"role": "teacher"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user_not_found", env.Code)
}

func TestDoubtsAndAnswers(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	bob, _ := h.register("Bob", "bob@example.com")
	teacher, teacherUser := h.register("Tess", "tess@example.com")
	h.promote(teacherUser.ID, model.RoleTeacher)

	resp, env := h.do(http.MethodPost, "/api/doubts", alice, map[string]interface{}{"question": "What is a group?", "tags": []string{"algebra"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doubt := env.Doubt
	assert.Equal(t, "Alice", doubt.OwnerName)

	resp, env = h.do(http.MethodGet, "/api/doubts/"+doubt.ID, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "doubts are readable by everyone signed in")

	resp, env = h.do(http.MethodGet, "/api/doubts/missing", bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "doubt_not_found", env.Code)

	resp, _ = h.do(http.MethodPut, "/api/doubts/"+doubt.ID, bob, map[string]string{"question": "Hijacked"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, env = h.do(http.MethodPost, "/api/doubts/"+doubt.ID+"/answers", bob, map[string]string{"text": "A set with an associative operation"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, env.Doubt.Answers, 1)
	answer := env.Doubt.Answers[0]
	assert.Equal(t, "Bob", answer.AuthorName)

	accept := "/api/doubts/" + doubt.ID + "/answers/" + answer.ID + "/accept"
	resp, _ = h.do(http.MethodPost, accept, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "an answer's author cannot accept it on someone else's doubt")

	resp, env = h.do(http.MethodPost, accept, teacher, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Doubt.Resolved)
	assert.True(t, env.Doubt.Answers[0].Accepted)

	resp, _ = h.do(http.MethodPost, "/api/doubts/"+doubt.ID+"/answers/missing/accept", alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(http.MethodDelete, "/api/doubts/"+doubt.ID+"/answers/"+answer.ID, alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "only the author or an admin removes an answer")

	resp, env = h.do(http.MethodDelete, "/api/doubts/"+doubt.ID+"/answers/"+answer.ID, bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.Doubt.Answers)
	assert.False(t, env.Doubt.Resolved)

	_, env = h.do(http.MethodGet, "/api/doubts?mine=true", bob, nil)
	assert.Empty(t, env.Doubts)
	_, env = h.do(http.MethodGet, "/api/doubts?tag=ALGEBRA", bob, nil)
	assert.Len(t, env.Doubts, 1)

	resp, _ = h.do(http.MethodDelete, "/api/doubts/"+doubt.ID, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(http.MethodDelete, "/api/doubts/"+doubt.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTimetable(t *testing.T) {
	h := newHarness(t)
	alice, _ := h.register("Alice", "alice@example.com")
	bob, _ := h.register("Bob", "bob@example.com")

	resp, env := h.do(http.MethodGet, "/api/timetable", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.Timetable.Schedule)

	resp, env = h.do(http.MethodPost, "/api/timetable", alice, map[string]interface{}{
		"schedule": []map[string]string{
			{"day": "monday", "startTime": "10:00", "endTime": "09:00", "subject": "Maths"},
			{"day": "Caturday", "startTime": "9am", "endTime": "10:00", "subject": ""},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, env.Errors, 4)

	resp, env = h.do(http.MethodPost, "/api/timetable", alice, map[string]interface{}{
		"schedule": []map[string]string{{"day": "monday", "startTime": "09:00", "endTime": "10:30", "subject": "Maths"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := env.Timetable
	require.Len(t, saved.Schedule, 1)
	assert.Equal(t, "Monday", saved.Schedule[0].Day)
	assert.NotEmpty(t, saved.Schedule[0].ID)

	_, env = h.do(http.MethodGet, "/api/timetable", bob, nil)
	assert.Empty(t, env.Timetable.Schedule, "timetables are per user")

	resp, _ = h.do(http.MethodPost, "/api/timetable", alice, map[string]interface{}{"schedule": []string{}, "updatedAt": saved.UpdatedAt})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = h.do(http.MethodPost, "/api/timetable", alice, map[string]interface{}{"schedule": []string{}, "updatedAt": saved.UpdatedAt})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "stale_write", env.Code)
}

func TestCoursesArePublic(t *testing.T) {
	h := newHarness(t)
	resp, env := h.do(http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, env.Courses)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Limiter = ratelimit.NewMemoryLimiter(2, time.Minute)
	})
	body := map[string]string{"email": "alice@example.com", "password": "whatever-pass"}
	for i := 0; i < 2; i++ {
		resp, _ := h.do(http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, env := h.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too_many_requests", env.Code)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newHarness(t)
	resp, env := h.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "route_not_found", env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/health", "", nil)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `studyhub_http_requests_total{method="GET",route="/health",status="200"}`)
}
