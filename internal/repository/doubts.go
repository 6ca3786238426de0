package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhub/internal/docstore"
	"studyhub/internal/model"
)

// mutateAttempts bounds the read-modify-write loop under concurrent answers.
const mutateAttempts = 3

type DoubtFilter struct {
	Owner string
	Tag   string
	Query string
	Limit int
}

type Doubts struct {
	docs docstore.Store
}

func NewDoubts(docs docstore.Store) *Doubts {
	return &Doubts{docs: docs}
}

func (r *Doubts) Create(ctx context.Context, doubt model.Doubt) (model.Doubt, error) {
	now := docstore.Now()
	doubt.ID = uuid.NewString()
	doubt.Answers = []model.Answer{}
	doubt.Resolved = false
	doubt.CreatedAt = now
	doubt.UpdatedAt = now

	doc, err := doubtDocument(doubt)
	if err != nil {
		return model.Doubt{}, err
	}
	if err := r.docs.Insert(ctx, doc); err != nil {
		return model.Doubt{}, err
	}
	return doubt, nil
}

func (r *Doubts) Get(ctx context.Context, id string) (model.Doubt, error) {
	doc, err := r.docs.Get(ctx, doubtsCollection, id)
	if err != nil {
		return model.Doubt{}, err
	}
	return decode[model.Doubt](doc)
}

// doubtPageSize is how many doubts List reads per round trip while filtering.
var doubtPageSize = 500

func (r *Doubts) List(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error) {
	tag := strings.ToLower(strings.TrimSpace(filter.Tag))
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	doubts := []model.Doubt{}
	seen := map[string]bool{}
	for offset := 0; ; offset += doubtPageSize {
		docs, err := r.docs.List(ctx, doubtsCollection, docstore.Filter{
			OwnerID: filter.Owner,
			Limit:   doubtPageSize,
			Offset:  offset,
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			// A doubt posted while paging shifts older ones to the next page.
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			doubt, err := decode[model.Doubt](doc)
			if err != nil {
				return nil, err
			}
			if tag != "" && !containsTag(doubt.Tags, tag) {
				continue
			}
			if query != "" && !matchesQuery(doubt, query) {
				continue
			}
			doubts = append(doubts, doubt)
			if filter.Limit > 0 && len(doubts) == filter.Limit {
				return doubts, nil
			}
		}
		if len(docs) < doubtPageSize {
			return doubts, nil
		}
	}
}

// Update stores doubt if the persisted copy was last modified at expected.
func (r *Doubts) Update(ctx context.Context, doubt model.Doubt, expected time.Time) (model.Doubt, error) {
	doubt.UpdatedAt = nextStamp(expected)
	doc, err := doubtDocument(doubt)
	if err != nil {
		return model.Doubt{}, err
	}
	if err := r.docs.Update(ctx, doc, expected); err != nil {
		return model.Doubt{}, err
	}
	return doubt, nil
}

// Mutate applies fn to the latest copy of the doubt, retrying when another
// writer got there first. Errors returned by fn abort without writing.
func (r *Doubts) Mutate(ctx context.Context, id string, fn func(*model.Doubt) error) (model.Doubt, error) {
	for attempt := 0; ; attempt++ {
		doubt, err := r.Get(ctx, id)
		if err != nil {
			return model.Doubt{}, err
		}
		expected := doubt.UpdatedAt
		if err := fn(&doubt); err != nil {
			return model.Doubt{}, err
		}
		updated, err := r.Update(ctx, doubt, expected)
		if errors.Is(err, ErrConflict) && attempt+1 < mutateAttempts {
			continue
		}
		return updated, err
	}
}

func (r *Doubts) Delete(ctx context.Context, id string) error {
	return r.docs.Delete(ctx, doubtsCollection, id)
}

func (r *Doubts) Count(ctx context.Context) (int, error) {
	return r.docs.Count(ctx, doubtsCollection)
}

func doubtDocument(doubt model.Doubt) (docstore.Document, error) {
	if doubt.Tags == nil {
		doubt.Tags = []string{}
	}
	if doubt.Answers == nil {
		doubt.Answers = []model.Answer{}
	}
	data, err := json.Marshal(doubt)
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{
		Collection: doubtsCollection,
		ID:         doubt.ID,
		OwnerID:    doubt.Owner,
		Data:       data,
		CreatedAt:  doubt.CreatedAt,
		UpdatedAt:  doubt.UpdatedAt,
	}, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

func matchesQuery(doubt model.Doubt, query string) bool {
	return strings.Contains(strings.ToLower(doubt.Question), query) ||
		strings.Contains(strings.ToLower(doubt.Description), query)
}
