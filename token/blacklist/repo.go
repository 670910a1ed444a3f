// Package blacklist records refresh tokens that must never validate again.
//
// Entries are keyed by the SHA-256 of the raw token so stores never hold usable
// credentials. An entry can be dropped once its token's own expiry has passed.
package blacklist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Repo is an append-only, expiry-bounded set of token hashes.
type Repo interface {
	// Contains reports whether tokenHash has been blacklisted
	Contains(ctx context.Context, tokenHash string) (bool, error)

	// Add inserts tokenHash atomically. added is false when it was already present,
	// so concurrent callers racing on the same token see exactly one winner.
	Add(ctx context.Context, tokenHash string, expiresAt time.Time) (added bool, err error)

	// DeleteExpired drops entries whose token expired at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Hash returns the hex SHA-256 of a raw token.
func Hash(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
