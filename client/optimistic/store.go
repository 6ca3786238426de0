package optimistic

import (
	"context"
	"errors"
	"sync"
)

// Send performs the mutation on the server and returns the authoritative
// record with its canonical key.
type Send[T any] func(ctx context.Context, m Mutation[T]) (T, string, error)

// Prompt asks the user whether to overwrite a newer server copy.
type Prompt func(ctx context.Context, conflict error) bool

// conflicter is implemented by errors that report a stale write, such as
// *client.Error.
type conflicter interface {
	Conflict() bool
}

func IsConflict(err error) bool {
	var c conflicter
	return errors.As(err, &c) && c.Conflict()
}

type Store[T any] struct {
	mu       sync.Mutex
	state    State[T]
	onChange func(State[T])
}

func NewStore[T any](items map[string]T) *Store[T] {
	return &Store[T]{state: NewState(items)}
}

// OnChange registers fn to receive every new state. fn runs with the store
// unlocked.
func (s *Store[T]) OnChange(fn func(State[T])) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store[T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Replace swaps in a freshly loaded list, for example after a poll. Records
// with a mutation in flight keep their local copy.
func (s *Store[T]) Replace(items map[string]T) {
	s.update(func(st State[T]) (State[T], error) {
		next := NewState(items)
		for _, m := range st.Mutations {
			if local, ok := st.Items[m.Key]; ok {
				next.setItem(m.Key, local)
			} else {
				delete(next.Items, m.Key)
			}
			next.setMutation(m)
		}
		return next.normalized(), nil
	})
}

// Run applies m locally, sends it and reconciles the answer. On a conflict it
// asks prompt, and either sends again with Overwrite set or rolls back. When
// ctx is cancelled no reconciliation happens and the mutation stays in flight,
// holding its key. The caller either discards the Store or calls Forget.
func (s *Store[T]) Run(ctx context.Context, m Mutation[T], send Send[T], prompt Prompt) error {
	if err := s.update(func(st State[T]) (State[T], error) { return st.Begin(m) }); err != nil {
		return err
	}

	for {
		current, ok := s.Snapshot().Mutation(m.ID)
		if !ok {
			return ErrUnknownMutation
		}
		server, key, err := send(ctx, current)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return s.update(func(st State[T]) (State[T], error) { return st.Confirm(m.ID, server, key) })
		}
		if !IsConflict(err) || prompt == nil {
			if rbErr := s.update(func(st State[T]) (State[T], error) { return st.Rollback(m.ID) }); rbErr != nil {
				return errors.Join(err, rbErr)
			}
			return err
		}

		if err := s.update(func(st State[T]) (State[T], error) { return st.MarkConflict(m.ID) }); err != nil {
			return err
		}
		overwrite := prompt(ctx, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if rErr := s.update(func(st State[T]) (State[T], error) { return st.Resolve(m.ID, overwrite) }); rErr != nil {
			return rErr
		}
		if !overwrite {
			return err
		}
	}
}

// Forget drops a mutation whose Run was cancelled, restoring the record as it
// was before Begin and freeing its key for a new mutation.
func (s *Store[T]) Forget(id string) error {
	return s.update(func(st State[T]) (State[T], error) { return st.Rollback(id) })
}

func (s *Store[T]) update(fn func(State[T]) (State[T], error)) error {
	s.mu.Lock()
	next, err := fn(s.state)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
	return nil
}
