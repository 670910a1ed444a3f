package blacklistrepofake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-auth/token/blacklist"
)

var _ blacklist.Repo = (*FakeBlacklistRepo)(nil)

type FakeBlacklistRepo struct {
	entries map[string]time.Time // token hash to token expiry
	lock    sync.RWMutex
}

func NewFakeBlacklistRepo() *FakeBlacklistRepo {
	return &FakeBlacklistRepo{
		entries: make(map[string]time.Time),
	}
}

func (br *FakeBlacklistRepo) Contains(_ context.Context, tokenHash string) (bool, error) {
	br.lock.RLock()
	defer br.lock.RUnlock()
	_, ok := br.entries[tokenHash]
	return ok, nil
}

func (br *FakeBlacklistRepo) Add(_ context.Context, tokenHash string, expiresAt time.Time) (bool, error) {
	br.lock.Lock()
	defer br.lock.Unlock()

	if _, ok := br.entries[tokenHash]; ok {
		return false, nil
	}
	br.entries[tokenHash] = expiresAt
	return true, nil
}

func (br *FakeBlacklistRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	br.lock.Lock()
	defer br.lock.Unlock()

	var deleted int64
	for hash, exp := range br.entries {
		if !now.Before(exp) {
			delete(br.entries, hash)
			deleted++
		}
	}
	return deleted, nil
}

func (br *FakeBlacklistRepo) Len() int {
	br.lock.RLock()
	defer br.lock.RUnlock()
	return len(br.entries)
}
