// Package docstore is the document database StudyHub persists into. Documents
// are JSON blobs grouped in collections, optionally owned by a user and
// optionally carrying a collection-wide unique key.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("document_not_found")
	ErrDuplicate = errors.New("document_duplicate")
	// ErrConflict means the stored document changed since the caller read it.
	ErrConflict = errors.New("document_conflict")
)

type Document struct {
	Collection string
	ID         string
	OwnerID    string
	UniqueKey  string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter narrows List. Results are ordered newest first; Offset skips that
// many of them so callers can page. Stores may cap an unset Limit.
type Filter struct {
	OwnerID string
	Limit   int
	Offset  int
}

type Store interface {
	Insert(ctx context.Context, doc Document) error
	Get(ctx context.Context, collection, id string) (Document, error)
	GetByKey(ctx context.Context, collection, key string) (Document, error)
	// Update replaces the document. When expected is non-zero the write only
	// happens if the stored UpdatedAt still equals it.
	Update(ctx context.Context, doc Document, expected time.Time) error
	Delete(ctx context.Context, collection, id string) error
	// List returns documents newest first.
	List(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Count(ctx context.Context, collection string) (int, error)
}

// Now is the timestamp precision every store can round-trip.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
