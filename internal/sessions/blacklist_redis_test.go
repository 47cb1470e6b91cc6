package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestBlacklist_Redis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	bl := NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()
	token := "access-token-1"
	require.NoError(t, bl.Add(ctx, token, 2*time.Second))

	ok, err := bl.Contains(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, m.Exists("blacklist:access:"+token), "raw token must not be used as key")

	m.FastForward(3 * time.Second)

	ok2, err := bl.Contains(ctx, token)
	require.NoError(t, err)
	require.False(t, ok2)
}

func TestBlacklist_LocalFallback(t *testing.T) {
	bl := NewBlacklist(nil)
	ctx := context.Background()
	require.NoError(t, bl.Add(ctx, "t1", time.Minute))
	require.NoError(t, bl.Add(ctx, "t2", 0))

	ok, err := bl.Contains(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = bl.Contains(ctx, "t2")
	require.False(t, ok)
}

func TestBlacklist_UserStamp(t *testing.T) {
	m := mr.RunT(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	for name, bl := range map[string]*Blacklist{
		"redis": NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()})).WithUserTTL(time.Minute),
		"local": NewBlacklist(nil).WithUserTTL(time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := bl.UserTokenRevoked(ctx, "u1", cutoff.Add(-time.Hour))
			require.NoError(t, err)
			require.False(t, ok, "no stamp yet")

			require.NoError(t, bl.RevokeUserTokens(ctx, "u1", cutoff))
			ok, err = bl.UserTokenRevoked(ctx, "u1", cutoff.Add(-time.Millisecond))
			require.NoError(t, err)
			require.True(t, ok)
			ok, _ = bl.UserTokenRevoked(ctx, "u1", cutoff)
			require.True(t, ok)
			ok, _ = bl.UserTokenRevoked(ctx, "u1", cutoff.Add(time.Millisecond))
			require.False(t, ok, "tokens issued afterwards stay valid")
			ok, _ = bl.UserTokenRevoked(ctx, "u2", cutoff.Add(-time.Hour))
			require.False(t, ok)
		})
	}

	require.True(t, m.Exists("blacklist:user:u1"))
	m.FastForward(2 * time.Minute)
	require.False(t, m.Exists("blacklist:user:u1"))
}
