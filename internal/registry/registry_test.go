package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-live/overlay-service/internal/config"
)

func newRedisPair(t *testing.T) (*miniredis.Miniredis, *RedisRegistry, *RedisRegistry) {
	t.Helper()
	mr := miniredis.RunT(t)

	newReg := func(instance string) *RedisRegistry {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		reg := NewRedisRegistryWithClient(client, config.RegistryConfig{
			Prefix:            "test:registry",
			KeyTTL:            time.Second,
			HeartbeatInterval: 100 * time.Millisecond,
			InstanceID:        instance,
		})
		t.Cleanup(func() { _ = reg.Close() })
		return reg
	}
	return mr, newReg("a"), newReg("b")
}

func TestMemoryRegistry_SingleWriter(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryRegistry("a")
	b := a.Peer("b")

	require.NoError(t, a.Claim(ctx, "s1"))
	require.NoError(t, a.Claim(ctx, "s1"), "re-claim by owner")
	assert.ErrorIs(t, b.Claim(ctx, "s1"), ErrSessionOwned)

	owner, err := b.Owner(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", owner)

	require.NoError(t, b.Release(ctx, "s1"), "release by non-owner is a no-op")
	owner, _ = a.Owner(ctx, "s1")
	assert.Equal(t, "a", owner)

	require.NoError(t, a.Release(ctx, "s1"))
	require.NoError(t, b.Claim(ctx, "s1"))
}

func TestRedisRegistry_SingleWriter(t *testing.T) {
	ctx := context.Background()
	_, a, b := newRedisPair(t)

	require.NoError(t, a.Claim(ctx, "s1"))
	require.NoError(t, a.Claim(ctx, "s1"))
	assert.ErrorIs(t, b.Claim(ctx, "s1"), ErrSessionOwned)

	owner, err := b.Owner(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", owner)

	require.NoError(t, b.Release(ctx, "s1"))
	owner, _ = b.Owner(ctx, "s1")
	assert.Equal(t, "a", owner, "non-owner release must not delete the key")

	require.NoError(t, a.Release(ctx, "s1"))
	owner, _ = b.Owner(ctx, "s1")
	assert.Empty(t, owner)
	require.NoError(t, b.Claim(ctx, "s1"))
}

func TestRedisRegistry_ClaimExpires(t *testing.T) {
	ctx := context.Background()
	mr, a, b := newRedisPair(t)

	require.NoError(t, a.Claim(ctx, "s1"))
	mr.FastForward(2 * time.Second)

	require.NoError(t, b.Claim(ctx, "s1"))
	owner, _ := a.Owner(ctx, "s1")
	assert.Equal(t, "b", owner)
}

func TestRedisRegistry_RefreshDetectsLostClaim(t *testing.T) {
	ctx := context.Background()
	mr, a, b := newRedisPair(t)

	lost := make(chan string, 1)
	a.OnLost(func(sessionID string) { lost <- sessionID })

	require.NoError(t, a.Claim(ctx, "s1"))
	mr.FastForward(2 * time.Second)
	require.NoError(t, b.Claim(ctx, "s1"))

	a.refreshKeys(ctx)

	select {
	case id := <-lost:
		assert.Equal(t, "s1", id)
	default:
		t.Fatal("expected lost callback")
	}
	v, err := mr.Get("test:registry:session:s1")
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestRedisRegistry_RefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	mr, a, _ := newRedisPair(t)

	require.NoError(t, a.Claim(ctx, "s1"))
	mr.FastForward(700 * time.Millisecond)
	a.refreshKeys(ctx)
	mr.FastForward(700 * time.Millisecond)

	owner, err := a.Owner(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", owner)
}
