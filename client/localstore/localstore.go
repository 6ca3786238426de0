// Package localstore keeps client state across restarts in a bolt file.
// Any namespace may be cleared at any time; readers treat a missing bucket or
// key as empty.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"

	"studyhub/client"
)

var (
	sessionBucket   = []byte("studyhub.session")
	draftsBucket    = []byte("studyhub.drafts")
	timetableBucket = []byte("studyhub.timetable")

	tokenKey = []byte("token")
	localKey = []byte("local")
)

// ErrNotFound is returned when a draft or timetable was never saved.
var ErrNotFound = errors.New("not found")

// Draft is unsent note content. BaseUpdatedAt is the server version the
// draft started from.
type Draft struct {
	NoteID        string    `json:"noteId"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Tags          []string  `json:"tags,omitempty"`
	BaseUpdatedAt time.Time `json:"baseUpdatedAt"`
	SavedAt       time.Time `json:"savedAt"`
}

// LocalTimetable is the offline copy of the user's schedule. BaseUpdatedAt
// is the server version it was derived from.
type LocalTimetable struct {
	Schedule      []client.TimetableEntry `json:"schedule"`
	BaseUpdatedAt time.Time               `json:"baseUpdatedAt"`
	SavedAt       time.Time               `json:"savedAt"`
}

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{sessionBucket, draftsBucket, timetableBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (s *Store) put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

func (s *Store) delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

func (s *Store) clear(bucket []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		return nil
	})
}

// LoadToken, SaveToken and ClearToken make Store a client.TokenStore.
func (s *Store) LoadToken() (string, error) {
	v, err := s.get(sessionBucket, tokenKey)
	return string(v), err
}

func (s *Store) SaveToken(token string) error {
	if token == "" {
		return s.ClearToken()
	}
	return s.put(sessionBucket, tokenKey, []byte(token))
}

func (s *Store) ClearToken() error {
	return s.delete(sessionBucket, tokenKey)
}

func (s *Store) SaveDraft(d Draft) error {
	if d.NoteID == "" {
		return errors.New("draft needs a note id")
	}
	d.SavedAt = s.now().UTC()
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.put(draftsBucket, []byte(d.NoteID), data)
}

func (s *Store) Draft(noteID string) (Draft, error) {
	v, err := s.get(draftsBucket, []byte(noteID))
	if err != nil {
		return Draft{}, err
	}
	if v == nil {
		return Draft{}, ErrNotFound
	}
	var d Draft
	if err := json.Unmarshal(v, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Drafts lists every saved draft in note id order. Entries that no longer
// decode are skipped.
func (s *Store) Drafts() ([]Draft, error) {
	var drafts []Draft
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(draftsBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var d Draft
			if err := json.Unmarshal(v, &d); err != nil {
				continue
			}
			drafts = append(drafts, d)
		}
		return nil
	})
	return drafts, err
}

func (s *Store) DeleteDraft(noteID string) error {
	return s.delete(draftsBucket, []byte(noteID))
}

func (s *Store) SaveTimetable(t LocalTimetable) error {
	t.SavedAt = s.now().UTC()
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.put(timetableBucket, localKey, data)
}

func (s *Store) Timetable() (LocalTimetable, error) {
	v, err := s.get(timetableBucket, localKey)
	if err != nil {
		return LocalTimetable{}, err
	}
	if v == nil {
		return LocalTimetable{}, ErrNotFound
	}
	var t LocalTimetable
	if err := json.Unmarshal(v, &t); err != nil {
		return LocalTimetable{}, err
	}
	return t, nil
}

func (s *Store) ClearSession() error   { return s.clear(sessionBucket) }
func (s *Store) ClearDrafts() error    { return s.clear(draftsBucket) }
func (s *Store) ClearTimetable() error { return s.clear(timetableBucket) }

// ClearAll wipes every namespace, as on sign-out from a shared device.
func (s *Store) ClearAll() error {
	for _, fn := range []func() error{s.ClearSession, s.ClearDrafts, s.ClearTimetable} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
