// Package optimistic applies mutations locally before the server confirms
// them. State transitions are pure functions over State; Store adds locking
// and drives one mutation against a send function.
package optimistic

import (
	"errors"
	"maps"
)

type Status int

const (
	Idle Status = iota
	Pending
	Confirmed
	RolledBack
	AwaitingDecision
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case RolledBack:
		return "rolled_back"
	case AwaitingDecision:
		return "awaiting_decision"
	default:
		return "unknown"
	}
}

type Op int

const (
	Create Op = iota
	Update
	Delete
)

var (
	ErrUnknownMutation = errors.New("optimistic: unknown mutation")
	ErrBadTransition   = errors.New("optimistic: transition not allowed from current status")
	ErrKeyBusy         = errors.New("optimistic: another mutation is in flight for this record")
	ErrDuplicateID     = errors.New("optimistic: mutation id already in use")
)

// Mutation is one intended change. For Create, Key is the temporary id of the
// placeholder.
type Mutation[T any] struct {
	ID    string
	Op    Op
	Key   string
	Value T
	// Overwrite is set once the user chose to replace a newer server copy.
	Overwrite bool

	Status   Status
	previous T
	existed  bool
}

// State is the locally visible records plus the mutations in flight. States
// built by this package keep empty maps nil, so a state compares equal to its
// snapshot once every mutation has been undone.
type State[T any] struct {
	Items     map[string]T
	Mutations map[string]Mutation[T]
}

func NewState[T any](items map[string]T) State[T] {
	return State[T]{Items: normalize(maps.Clone(items))}
}

// Begin applies m locally and records how to undo it.
func (s State[T]) Begin(m Mutation[T]) (State[T], error) {
	if _, ok := s.Mutations[m.ID]; ok {
		return s, ErrDuplicateID
	}
	for _, other := range s.Mutations {
		if other.Key == m.Key {
			return s, ErrKeyBusy
		}
	}

	next := s.clone()
	m.previous, m.existed = s.Items[m.Key]
	m.Status = Pending
	next.apply(m)
	next.setMutation(m)
	return next.normalized(), nil
}

// Confirm replaces the placeholder with the server's record. serverKey is the
// canonical id; for Create it usually differs from the temporary key.
func (s State[T]) Confirm(id string, server T, serverKey string) (State[T], error) {
	m, err := s.mutation(id, Pending)
	if err != nil {
		return s, err
	}
	next := s.clone()
	switch m.Op {
	case Create:
		delete(next.Items, m.Key)
		next.setItem(serverKey, server)
	case Update:
		if serverKey != m.Key {
			delete(next.Items, m.Key)
		}
		next.setItem(serverKey, server)
	case Delete:
	}
	delete(next.Mutations, id)
	return next.normalized(), nil
}

// Rollback restores the record exactly as it was before Begin.
func (s State[T]) Rollback(id string) (State[T], error) {
	m, err := s.mutation(id, Pending, AwaitingDecision)
	if err != nil {
		return s, err
	}
	next := s.clone()
	if m.existed {
		next.setItem(m.Key, m.previous)
	} else {
		delete(next.Items, m.Key)
	}
	delete(next.Mutations, id)
	return next.normalized(), nil
}

// MarkConflict parks a mutation until the user decides. The local copy stays
// visible meanwhile.
func (s State[T]) MarkConflict(id string) (State[T], error) {
	m, err := s.mutation(id, Pending)
	if err != nil {
		return s, err
	}
	next := s.clone()
	m.Status = AwaitingDecision
	next.setMutation(m)
	return next, nil
}

// Resolve applies the user's decision on a conflict: overwrite sends the
// mutation again, otherwise it is rolled back.
func (s State[T]) Resolve(id string, overwrite bool) (State[T], error) {
	m, err := s.mutation(id, AwaitingDecision)
	if err != nil {
		return s, err
	}
	if !overwrite {
		return s.Rollback(id)
	}
	next := s.clone()
	m.Status = Pending
	m.Overwrite = true
	next.setMutation(m)
	return next, nil
}

// StatusOf reports Idle for mutations that are not in flight, including ones
// that already finished.
func (s State[T]) StatusOf(id string) Status {
	if m, ok := s.Mutations[id]; ok {
		return m.Status
	}
	return Idle
}

func (s State[T]) Mutation(id string) (Mutation[T], bool) {
	m, ok := s.Mutations[id]
	return m, ok
}

func (s State[T]) mutation(id string, allowed ...Status) (Mutation[T], error) {
	m, ok := s.Mutations[id]
	if !ok {
		return m, ErrUnknownMutation
	}
	for _, status := range allowed {
		if m.Status == status {
			return m, nil
		}
	}
	return m, ErrBadTransition
}

func (s *State[T]) apply(m Mutation[T]) {
	switch m.Op {
	case Create, Update:
		s.setItem(m.Key, m.Value)
	case Delete:
		delete(s.Items, m.Key)
	}
}

func (s *State[T]) setItem(key string, value T) {
	if s.Items == nil {
		s.Items = map[string]T{}
	}
	s.Items[key] = value
}

func (s *State[T]) setMutation(m Mutation[T]) {
	if s.Mutations == nil {
		s.Mutations = map[string]Mutation[T]{}
	}
	s.Mutations[m.ID] = m
}

func (s State[T]) clone() State[T] {
	return State[T]{Items: maps.Clone(s.Items), Mutations: maps.Clone(s.Mutations)}
}

func (s State[T]) normalized() State[T] {
	s.Items = normalize(s.Items)
	s.Mutations = normalize(s.Mutations)
	return s
}

func normalize[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	return m
}
