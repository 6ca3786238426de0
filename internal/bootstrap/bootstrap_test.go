package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhub/internal/config"
	"studyhub/internal/docstore"
	"studyhub/internal/log"
)

func TestOpenStoreMemory(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.Config{StoreDriver: config.DriverMemory}, log.Discard())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &docstore.MemoryStore{}, store)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenStore(context.Background(), config.Config{StoreDriver: "sqlite"}, log.Discard())
	assert.Error(t, err)
}

func TestOpenRedisDisabled(t *testing.T) {
	client, err := OpenRedis(context.Background(), config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
