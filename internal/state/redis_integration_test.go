//go:build integration

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStore_SaveLoad(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	s, err := OpenRedis(ctx, endpoint, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Load(ctx, KeyRooms)
	require.NoError(t, err)
	assert.Nil(t, got, "missing key should load as nil")

	at, err := s.UpdatedAt(ctx, KeyRooms)
	require.NoError(t, err)
	assert.True(t, at.IsZero(), "missing key has no save time")

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, s.Save(ctx, KeyRooms, []byte(`[{"id":101}]`)))
	require.NoError(t, s.Save(ctx, KeyRooms, []byte(`[{"id":102}]`)))

	got, err = s.Load(ctx, KeyRooms)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":102}]`, string(got))

	at, err = s.UpdatedAt(ctx, KeyRooms)
	require.NoError(t, err)
	assert.True(t, at.After(before), "save time %v should follow %v", at, before)
}
