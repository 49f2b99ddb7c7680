package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OneTimePurpose namespaces single-use tokens in Redis.
type OneTimePurpose string

const (
	PurposeReset  OneTimePurpose = "reset"
	PurposeVerify OneTimePurpose = "verify"
)

const blacklistPrefix = "blacklist:"

// TokenRepo keeps the short-lived authentication state in Redis: the
// refresh-token revocation set (keyed by jti) and the one-time tokens used
// for password reset and email verification.  Every entry carries a TTL so
// nothing has to be swept.
type TokenRepo struct{ RDB redis.Cmdable }

func NewTokenRepo(rdb redis.Cmdable) *TokenRepo { return &TokenRepo{RDB: rdb} }

// Revoke records tokenID in the revocation set for ttl, which should be the
// remaining validity of the token.  A non-positive ttl means the token has
// already expired on its own and nothing is stored.
func (r *TokenRepo) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.RDB.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("repository.TokenRepo.Revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is in the revocation set.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.RDB.Exists(ctx, blacklistPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("repository.TokenRepo.IsRevoked: %w", err)
	}
	return n > 0, nil
}

// PutOneTime maps token to principalID for ttl.  Writing the same key twice
// is last-write-wins.
func (r *TokenRepo) PutOneTime(ctx context.Context, purpose OneTimePurpose, token, principalID string, ttl time.Duration) error {
	if err := r.RDB.Set(ctx, oneTimeKey(purpose, token), principalID, ttl).Err(); err != nil {
		return fmt.Errorf("repository.TokenRepo.PutOneTime: %w", err)
	}
	return nil
}

// LookupOneTime returns the principal id stored for token, or ErrNotFound
// when it was never issued or has expired.
func (r *TokenRepo) LookupOneTime(ctx context.Context, purpose OneTimePurpose, token string) (string, error) {
	id, err := r.RDB.Get(ctx, oneTimeKey(purpose, token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("repository.TokenRepo.LookupOneTime: %w", err)
	}
	return id, nil
}

// DeleteOneTime removes token so it cannot be consumed again.
func (r *TokenRepo) DeleteOneTime(ctx context.Context, purpose OneTimePurpose, token string) error {
	if err := r.RDB.Del(ctx, oneTimeKey(purpose, token)).Err(); err != nil {
		return fmt.Errorf("repository.TokenRepo.DeleteOneTime: %w", err)
	}
	return nil
}

func oneTimeKey(purpose OneTimePurpose, token string) string {
	return string(purpose) + ":" + token
}
