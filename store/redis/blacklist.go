// Package redis implements the refresh-token blacklist on Redis. Entries carry a
// TTL equal to the remaining life of their token, so Redis drops them on its own.
package redis

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

var _ blacklist.Repo = (*BlacklistRepo)(nil)

const keyPrefix = "blacklist:"

// minTTL keeps already-expired tokens claimable exactly once.
const minTTL = time.Second

type BlacklistRepo struct {
	client  goredis.UniversalClient
	nowFunc func() time.Time
}

type Option func(*BlacklistRepo)

func WithNowFunc(now func() time.Time) Option {
	return func(r *BlacklistRepo) {
		r.nowFunc = now
	}
}

func NewBlacklistRepo(client goredis.UniversalClient, options ...Option) *BlacklistRepo {
	r := &BlacklistRepo{client: client}
	for _, opt := range options {
		opt(r)
	}
	if r.nowFunc == nil {
		r.nowFunc = time.Now
	}
	return r
}

// Connect parses redisURL and checks the server answers.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "redis: parse url")
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Unavailable(errors.Wrap(err, "redis: ping"))
	}
	return client, nil
}

func (r *BlacklistRepo) Contains(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+tokenHash).Result()
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Contains"))
	}
	return n == 1, nil
}

func (r *BlacklistRepo) Add(ctx context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.nowFunc())
	if ttl < minTTL {
		ttl = minTTL
	}
	added, err := r.client.SetNX(ctx, keyPrefix+tokenHash, expiresAt.UTC().Unix(), ttl).Result()
	if err != nil {
		return false, apperrors.Unavailable(errors.Wrap(err, "BlacklistRepo.Add"))
	}
	return added, nil
}

// DeleteExpired is a no-op; key TTLs already remove expired entries.
func (r *BlacklistRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
