package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/crypto"
	"studyhub/internal/docstore"
	"studyhub/internal/model"
	"studyhub/internal/repository"
)

func TestCreateUserAndSetRole(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(docstore.NewMemoryStore())

	user, err := createUser(ctx, repos, "Root@Example.com", "Root", "correct-horse", model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)
	assert.NoError(t, crypto.CheckPassword(user.PasswordHash, "correct-horse"))

	_, err = createUser(ctx, repos, "root@example.com", "Again", "correct-horse", model.RoleStudent)
	assert.ErrorContains(t, err, "already exists")

	_, err = createUser(ctx, repos, "x@example.com", "X", "short", model.RoleStudent)
	assert.Error(t, err)
	_, err = createUser(ctx, repos, "x@example.com", "X", "correct-horse", "overlord")
	assert.Error(t, err)

	updated, err := setRole(ctx, repos, "ROOT@example.com", model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, updated.Role)

	_, err = setRole(ctx, repos, "missing@example.com", model.RoleTeacher)
	assert.ErrorContains(t, err, "no account")
}

func TestPrintJSONOmitsHash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, model.User{ID: "1", PasswordHash: "secret"}.View()))
	assert.NotContains(t, buf.String(), "secret")
}
