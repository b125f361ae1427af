package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"stakevoice/internal/session"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisRevocations(t *testing.T) {
	addr := os.Getenv("STAKEVOICE_TEST_REDIS")
	if addr == "" {
		t.Skip("STAKEVOICE_TEST_REDIS not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	r := session.NewRedisRevocations(rdb)
	jti := uuid.NewString()

	ok, err := r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Revoke(ctx, jti, time.Minute))
	ok, err = r.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.True(t, ok)
}
