package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/docstore"
	"studyhub/internal/model"
)

type Notes struct {
	docs docstore.Store
}

func NewNotes(docs docstore.Store) *Notes {
	return &Notes{docs: docs}
}

func (r *Notes) Create(ctx context.Context, note model.Note) (model.Note, error) {
	now := docstore.Now()
	note.ID = uuid.NewString()
	note.CreatedAt = now
	note.UpdatedAt = now

	doc, err := noteDocument(note)
	if err != nil {
		return model.Note{}, err
	}
	if err := r.docs.Insert(ctx, doc); err != nil {
		return model.Note{}, err
	}
	return note, nil
}

func (r *Notes) Get(ctx context.Context, id string) (model.Note, error) {
	doc, err := r.docs.Get(ctx, notesCollection, id)
	if err != nil {
		return model.Note{}, err
	}
	return decode[model.Note](doc)
}

// List returns the owner's notes, or every note when owner is empty.
func (r *Notes) List(ctx context.Context, owner string, limit int) ([]model.Note, error) {
	docs, err := r.docs.List(ctx, notesCollection, docstore.Filter{OwnerID: owner, Limit: limit})
	if err != nil {
		return nil, err
	}
	notes := make([]model.Note, 0, len(docs))
	for _, doc := range docs {
		note, err := decode[model.Note](doc)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Update stores note if the persisted copy was last modified at expected.
func (r *Notes) Update(ctx context.Context, note model.Note, expected time.Time) (model.Note, error) {
	note.UpdatedAt = nextStamp(expected)
	doc, err := noteDocument(note)
	if err != nil {
		return model.Note{}, err
	}
	if err := r.docs.Update(ctx, doc, expected); err != nil {
		return model.Note{}, err
	}
	return note, nil
}

func (r *Notes) Delete(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, notesCollection, id)
}

func (r *Notes) Count(ctx context.Context) (int, error) {
	return r.docs.Count(ctx, notesCollection)
}

func noteDocument(note model.Note) (docstore.Document, error) {
	if note.Tags == nil {
		note.Tags = []string{}
	}
	data, err := json.Marshal(note)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{
		Collection: notesCollection,
		ID:         note.ID,
		OwnerID:    note.Owner,
		Data:       data,
		CreatedAt:  note.CreatedAt,
		UpdatedAt:  note.UpdatedAt,
	}, nil
}
