//go:build integration

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)
	s := NewRedisStore(rdb, "salesdesk:session", time.Hour)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, s.Save(ctx, State{Token: "tok"}))
	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", st.Token)

	ttl, err := rdb.TTL(ctx, "salesdesk:session").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// Two managers share the login through Redis.
	auth := &mockAuth{state: State{Token: "shared"}}
	require.NoError(t, s.Clear(ctx))
	m1 := NewManager(s, auth, creds)
	m2 := NewManager(s, auth, creds)
	_, err = m1.Token(ctx)
	require.NoError(t, err)
	tok, err := m2.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "shared", tok)
	assert.Equal(t, 1, auth.calls)
}
