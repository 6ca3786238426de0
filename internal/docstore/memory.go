package docstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]map[string]Document{}}
}

func (s *MemoryStore) Insert(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(doc.Collection)
	if _, ok := coll[doc.ID]; ok {
		return ErrDuplicate
	}
	if doc.UniqueKey != "" && s.findKey(doc.Collection, doc.UniqueKey, "") {
		return ErrDuplicate
	}
	coll[doc.ID] = clone(doc)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return clone(doc), nil
}

func (s *MemoryStore) GetByKey(_ context.Context, collection, key string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if doc.UniqueKey == key {
			return clone(doc), nil
		}
	}
	return Document{}, ErrNotFound
}

func (s *MemoryStore) Update(_ context.Context, doc Document, expected time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(doc.Collection)
	current, ok := coll[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if !expected.IsZero() && !current.UpdatedAt.Equal(expected) {
		return ErrConflict
	}
	if doc.UniqueKey != "" && s.findKey(doc.Collection, doc.UniqueKey, doc.ID) {
		return ErrDuplicate
	}
	doc.CreatedAt = current.CreatedAt
	coll[doc.ID] = clone(doc)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if _, ok := coll[id]; !ok {
		return ErrNotFound
	}
	delete(coll, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		if filter.OwnerID != "" && doc.OwnerID != filter.OwnerID {
			continue
		}
		docs = append(docs, clone(doc))
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(docs) {
			return []Document{}, nil
		}
		docs = docs[filter.Offset:]
	}
	if filter.Limit > 0 && len(docs) > filter.Limit {
		docs = docs[:filter.Limit]
	}
	return docs, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

func (s *MemoryStore) collection(name string) map[string]Document {
	coll, ok := s.collections[name]
	if !ok {
		coll = map[string]Document{}
		s.collections[name] = coll
	}
	return coll
}

// findKey must be called with the lock held.
func (s *MemoryStore) findKey(collection, key, exceptID string) bool {
	for id, doc := range s.collections[collection] {
		if id != exceptID && doc.UniqueKey == key {
			return true
		}
	}
	return false
}

func clone(doc Document) Document {
	doc.Data = append([]byte(nil), doc.Data...)
	return doc
}
