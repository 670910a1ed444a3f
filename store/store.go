// Package store holds what the storage backends share: the transaction boundary
// used by multi-step auth mutations.
package store

import "context"

// Transactor runs fn atomically. Repositories reached through the ctx passed to fn
// join the transaction; the transaction commits when fn returns nil and rolls back
// otherwise. fn's error is returned unchanged.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoTx runs fn directly. It serves the in-memory repos, whose single operations
// are already atomic.
type NoTx struct{}

func (NoTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
