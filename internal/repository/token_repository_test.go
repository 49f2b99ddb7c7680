package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTokenRepo(t *testing.T) (*TokenRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTokenRepo(rdb), mr
}

func TestTokenRepo_RevokeExpiresWithTTL(t *testing.T) {
	repo, mr := newTokenRepo(t)
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, "jti-1", time.Hour))
	require.True(t, mr.Exists("blacklist:jti-1"))
	require.Equal(t, time.Hour, mr.TTL("blacklist:jti-1"))

	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	mr.FastForward(time.Hour + time.Second)
	revoked, err = repo.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestTokenRepo_RevokeNonPositiveTTLIsNoop(t *testing.T) {
	repo, mr := newTokenRepo(t)
	require.NoError(t, repo.Revoke(context.Background(), "jti-old", 0))
	require.False(t, mr.Exists("blacklist:jti-old"))
}

func TestTokenRepo_OneTimeLifecycle(t *testing.T) {
	repo, mr := newTokenRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutOneTime(ctx, PurposeReset, "tok", "u-1", time.Hour))
	require.True(t, mr.Exists("reset:tok"))

	id, err := repo.LookupOneTime(ctx, PurposeReset, "tok")
	require.NoError(t, err)
	require.Equal(t, "u-1", id)

	// purposes do not leak into each other
	_, err = repo.LookupOneTime(ctx, PurposeVerify, "tok")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.DeleteOneTime(ctx, PurposeReset, "tok"))
	_, err = repo.LookupOneTime(ctx, PurposeReset, "tok")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTokenRepo_OneTimeExpires(t *testing.T) {
	repo, mr := newTokenRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.PutOneTime(ctx, PurposeVerify, "v", "u-2", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := repo.LookupOneTime(ctx, PurposeVerify, "v")
	require.ErrorIs(t, err, ErrNotFound)
}
