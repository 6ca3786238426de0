package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"studyhub/internal/docstore"
	"studyhub/internal/model"
)

type Timetables struct {
	docs docstore.Store
}

func NewTimetables(docs docstore.Store) *Timetables {
	return &Timetables{docs: docs}
}

// Get returns the owner's timetable, or an empty one that was never saved.
func (r *Timetables) Get(ctx context.Context, owner string) (model.Timetable, error) {
	doc, err := r.docs.Get(ctx, timetablesCollection, owner)
	if errors.Is(err, ErrNotFound) {
		return model.Timetable{ID: owner, Owner: owner, Schedule: []model.TimetableEntry{}}, nil
	}
	if err != nil {
		return model.Timetable{}, err
	}
	return decode[model.Timetable](doc)
}

// Save replaces the owner's schedule. A non-zero expected enables the
// staleness check against the stored copy.
func (r *Timetables) Save(ctx context.Context, owner string, schedule []model.TimetableEntry, expected time.Time) (model.Timetable, error) {
	if schedule == nil {
		schedule = []model.TimetableEntry{}
	}
	current, err := r.docs.Get(ctx, timetablesCollection, owner)
	switch {
	case errors.Is(err, ErrNotFound):
		if !expected.IsZero() {
			return model.Timetable{}, ErrConflict
		}
		tt := model.Timetable{ID: owner, Owner: owner, Schedule: schedule, UpdatedAt: docstore.Now()}
		doc, err := timetableDocument(tt, tt.UpdatedAt)
		if err != nil {
			return model.Timetable{}, err
		}
		if err := r.docs.Insert(ctx, doc); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return model.Timetable{}, ErrConflict
			}
			return model.Timetable{}, err
		}
		return tt, nil
	case err != nil:
		return model.Timetable{}, err
	}

	if expected.IsZero() {
		expected = current.UpdatedAt
	}
	tt := model.Timetable{ID: owner, Owner: owner, Schedule: schedule, UpdatedAt: nextStamp(current.UpdatedAt)}
	doc, err := timetableDocument(tt, current.CreatedAt)
	if err != nil {
		return model.Timetable{}, err
	}
	if err := r.docs.Update(ctx, doc, expected); err != nil {
		return model.Timetable{}, err
	}
	return tt, nil
}

func (r *Timetables) Count(ctx context.Context) (int, error) {
	return r.docs.Count(ctx, timetablesCollection)
}

func timetableDocument(tt model.Timetable, createdAt time.Time) (docstore.Document, error) {
	data, err := json.Marshal(tt)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{
		Collection: timetablesCollection,
		ID:         tt.ID,
		OwnerID:    tt.Owner,
		Data:       data,
		CreatedAt:  createdAt,
		UpdatedAt:  tt.UpdatedAt,
	}, nil
}
