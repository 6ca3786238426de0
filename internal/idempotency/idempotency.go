// Package idempotency remembers the response to a create request so a client
// retrying the same Idempotency-Key gets the first response back instead of a
// second resource.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type State int

const (
	// Fresh means the caller holds the reservation and must Complete or Abort it.
	Fresh State = iota
	Replay
	InFlight
)

type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store interface {
	Begin(ctx context.Context, key string) (State, Response, error)
	Complete(ctx context.Context, key string, resp Response) error
	Abort(ctx context.Context, key string) error
}

// DefaultPendingTTL bounds how long a reservation blocks its key when the
// request holding it never completes.
const DefaultPendingTTL = time.Minute

// New picks the redis store when a client is configured. ttl keeps completed
// responses; pendingTTL keeps reservations and defaults to DefaultPendingTTL.
func New(client *redis.Client, ttl, pendingTTL time.Duration) Store {
	if client != nil {
		return NewRedisStore(client, ttl, pendingTTL)
	}
	return NewMemoryStore(ttl, pendingTTL)
}

func pendingOrDefault(pendingTTL time.Duration) time.Duration {
	if pendingTTL <= 0 {
		return DefaultPendingTTL
	}
	return pendingTTL
}

const pendingMarker = "pending"

type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewRedisStore(client *redis.Client, ttl, pendingTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, pendingTTL: pendingOrDefault(pendingTTL)}
}

func (s *RedisStore) Begin(ctx context.Context, key string) (State, Response, error) {
	redisKey := idempotencyKey(key)
	acquired, err := s.client.SetNX(ctx, redisKey, pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return Fresh, Response{}, err
	}
	if acquired {
		return Fresh, Response{}, nil
	}

	value, err := s.client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; try once more.
		return s.Begin(ctx, key)
	}
	if err != nil {
		return Fresh, Response{}, err
	}
	if value == pendingMarker {
		return InFlight, Response{}, nil
	}
	var resp Response
	if err := json.Unmarshal([]byte(value), &resp); err != nil {
		return Fresh, Response{}, err
	}
	return Replay, resp, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyKey(key), data, s.ttl).Err()
}

func (s *RedisStore) Abort(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

type MemoryStore struct {
	ttl        time.Duration
	pendingTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	pending   bool
	resp      Response
	expiresAt time.Time
}

func NewMemoryStore(ttl, pendingTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:        ttl,
		pendingTTL: pendingOrDefault(pendingTTL),
		now:        time.Now,
		entries:    map[string]memoryEntry{},
	}
}

func (s *MemoryStore) Begin(_ context.Context, key string) (State, Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		if e.pending {
			return InFlight, Response{}, nil
		}
		return Replay, e.resp, nil
	}
	s.entries[key] = memoryEntry{pending: true, expiresAt: now.Add(s.pendingTTL)}
	return Fresh, Response{}, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, resp Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{resp: resp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Abort(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
