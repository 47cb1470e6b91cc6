package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist tracks revoked access tokens until they expire. Tokens are stored by
// SHA-256 digest. With a nil Redis client it falls back to process memory, which
// is only correct for a single API instance.
type Blacklist struct {
	client  *redis.Client
	userTTL time.Duration

	mu     sync.Mutex
	local  map[string]time.Time
	stamps map[string]userStamp
}

type userStamp struct {
	cutoff  time.Time
	expires time.Time
}

func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{client: client, userTTL: 24 * time.Hour, local: map[string]time.Time{}, stamps: map[string]userStamp{}}
}

// WithUserTTL sets how long per-user stamps are kept. It must be at least the
// access token lifetime.
func (b *Blacklist) WithUserTTL(ttl time.Duration) *Blacklist {
	if ttl > 0 {
		b.userTTL = ttl
	}
	return b
}

func userStampKey(userID string) string {
	return "blacklist:user:" + userID
}

func blacklistKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "blacklist:access:" + hex.EncodeToString(sum[:])
}

// Add revokes token for ttl. Non-positive ttls are ignored because the token has
// already expired.
func (b *Blacklist) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	key := blacklistKey(token)
	if b.client != nil {
		return b.client.Set(ctx, key, "1", ttl).Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local[key] = time.Now().Add(ttl)
	return nil
}

// Contains reports whether token has been revoked.
func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	key := blacklistKey(token)
	if b.client != nil {
		n, err := b.client.Exists(ctx, key).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.local[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(b.local, key)
		return false, nil
	}
	return true, nil
}

// RevokeUserTokens rejects every access token of userID issued at or before cutoff.
func (b *Blacklist) RevokeUserTokens(ctx context.Context, userID string, cutoff time.Time) error {
	if b.client != nil {
		return b.client.Set(ctx, userStampKey(userID), cutoff.UnixMilli(), b.userTTL).Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stamps[userID] = userStamp{cutoff: cutoff, expires: time.Now().Add(b.userTTL)}
	return nil
}

// UserTokenRevoked reports whether a token of userID issued at issuedAt is not
// newer than the user's revocation stamp.
func (b *Blacklist) UserTokenRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	if b.client != nil {
		v, err := b.client.Get(ctx, userStampKey(userID)).Result()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, err
		}
		return !issuedAt.After(time.UnixMilli(ms)), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.stamps[userID]
	if !ok {
		return false, nil
	}
	if time.Now().After(st.expires) {
		delete(b.stamps, userID)
		return false, nil
	}
	return !issuedAt.After(st.cutoff), nil
}
