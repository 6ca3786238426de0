// Package repository maps StudyHub records onto docstore collections.
package repository

import (
	"encoding/json"
	"time"

	"studyhub/internal/docstore"
)

const (
	usersCollection      = "users"
	notesCollection      = "notes"
	doubtsCollection     = "doubts"
	timetablesCollection = "timetables"
)

var (
	ErrNotFound  = docstore.ErrNotFound
	ErrDuplicate = docstore.ErrDuplicate
	ErrConflict  = docstore.ErrConflict
)

// Repositories bundles every repository over one store.
type Repositories struct {
	Users      *Users
	Notes      *Notes
	Doubts     *Doubts
	Timetables *Timetables
}

func New(docs docstore.Store) *Repositories {
	return &Repositories{
		Users:      NewUsers(docs),
		Notes:      NewNotes(docs),
		Doubts:     NewDoubts(docs),
		Timetables: NewTimetables(docs),
	}
}

func decode[T any](doc docstore.Document) (T, error) {
	var out T
	err := json.Unmarshal(doc.Data, &out)
	return out, err
}

// nextStamp returns a modification time strictly after prev so that
// compare-and-swap on UpdatedAt always observes a change.
func nextStamp(prev time.Time) time.Time {
	now := docstore.Now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
