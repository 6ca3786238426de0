package client

import "sync"

// Reason says why a session was invalidated.
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
)

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// Session holds the bearer token. Every request reads it fresh, and
// Subscribe is the only way to learn that the server rejected it.
type Session struct {
	store TokenStore

	mu     sync.RWMutex
	token  string
	nextID int
	subs   map[int]func(Reason)
}

// NewSession restores the token from store when one is given. A store that
// fails to load starts the session signed out.
func NewSession(store TokenStore) *Session {
	s := &Session{store: store, subs: map[int]func(Reason){}}
	if store != nil {
		if token, err := store.LoadToken(); err == nil {
			s.token = token
		}
	}
	return s
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

func (s *Session) Set(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	if s.store != nil {
		return s.store.SaveToken(token)
	}
	return nil
}

// Clear discards the token without notifying subscribers. It is what logout
// does.
func (s *Session) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if s.store != nil {
		return s.store.ClearToken()
	}
	return nil
}

// Invalidate discards the token and notifies every subscriber.
func (s *Session) Invalidate(reason Reason) {
	_ = s.Clear()

	s.mu.RLock()
	subs := make([]func(Reason), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(reason)
	}
}

// Subscribe registers fn for invalidation events and returns a func removing it.
func (s *Session) Subscribe(fn func(Reason)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
