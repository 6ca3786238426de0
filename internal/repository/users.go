package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"studyhub/internal/docstore"
	"studyhub/internal/model"
)

// userRecord is the persisted shape; model.User never serializes the hash.
type userRecord struct {
	model.User
	PasswordHash string `json:"passwordHash"`
}

type Users struct {
	docs docstore.Store
}

func NewUsers(docs docstore.Store) *Users {
	return &Users{docs: docs}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create stores a new user. ErrDuplicate means the email is taken.
func (r *Users) Create(ctx context.Context, user model.User) (model.User, error) {
	now := docstore.Now()
	user.ID = uuid.NewString()
	user.Email = NormalizeEmail(user.Email)
	if !user.Role.Valid() {
		user.Role = model.RoleStudent
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	doc, err := userDocument(user)
	if err != nil {
		return model.User{}, err
	}
	if err := r.docs.Insert(ctx, doc); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *Users) GetByID(ctx context.Context, id string) (model.User, error) {
	doc, err := r.docs.Get(ctx, usersCollection, id)
	if err != nil {
		return model.User{}, err
	}
	return userFromDocument(doc)
}

func (r *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
	doc, err := r.docs.GetByKey(ctx, usersCollection, NormalizeEmail(email))
	if err != nil {
		return model.User{}, err
	}
	return userFromDocument(doc)
}

// Update writes name, hash and role. Identity fields (id, email) never change.
func (r *Users) Update(ctx context.Context, user model.User) (model.User, error) {
	current, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return model.User{}, err
	}
	expected := current.UpdatedAt
	current.Name = user.Name
	current.PasswordHash = user.PasswordHash
	current.Role = user.Role
	current.UpdatedAt = nextStamp(expected)

	doc, err := userDocument(current)
	if err != nil {
		return model.User{}, err
	}
	if err := r.docs.Update(ctx, doc, expected); err != nil {
		return model.User{}, err
	}
	return current, nil
}

func (r *Users) List(ctx context.Context, limit int) ([]model.User, error) {
	docs, err := r.docs.List(ctx, usersCollection, docstore.Filter{Limit: limit})
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		user, err := userFromDocument(doc)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *Users) Count(ctx context.Context) (int, error) {
	return r.docs.Count(ctx, usersCollection)
}

func userDocument(user model.User) (docstore.Document, error) {
	data, err := json.Marshal(userRecord{User: user, PasswordHash: user.PasswordHash})
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{
		Collection: usersCollection,
		ID:         user.ID,
		OwnerID:    user.ID,
		UniqueKey:  user.Email,
		Data:       data,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}, nil
}

func userFromDocument(doc docstore.Document) (model.User, error) {
	record, err := decode[userRecord](doc)
	if err != nil {
		return model.User{}, err
	}
	user := record.User
	user.PasswordHash = record.PasswordHash
	return user, nil
}
