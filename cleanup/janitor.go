// Package cleanup periodically removes expired sessions and blacklist entries.
// Expired rows are already ignored by reads; purging only bounds storage.
package cleanup

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type BlacklistPurger interface {
	PurgeBlacklist(ctx context.Context) (int64, error)
}

// Observer is told how many rows each sweep removed.
type Observer interface {
	ObservePurge(kind string, removed int64)
}

type nopObserver struct{}

func (nopObserver) ObservePurge(string, int64) {}

// Result counts the rows removed by one sweep.
type Result struct {
	Sessions  int64
	Blacklist int64
}

type Janitor struct {
	sessions  SessionPurger
	blacklist BlacklistPurger
	interval  time.Duration
	timeout   time.Duration
	observer  Observer
}

type Option func(*Janitor)

func WithObserver(o Observer) Option {
	return func(j *Janitor) {
		j.observer = o
	}
}

// WithSweepTimeout bounds a single sweep.
func WithSweepTimeout(d time.Duration) Option {
	return func(j *Janitor) {
		j.timeout = d
	}
}

func NewJanitor(sessions SessionPurger, blacklist BlacklistPurger, interval time.Duration, options ...Option) *Janitor {
	j := &Janitor{
		sessions:  sessions,
		blacklist: blacklist,
		interval:  interval,
	}
	for _, opt := range options {
		opt(j)
	}
	if j.interval <= 0 {
		j.interval = 10 * time.Minute
	}
	if j.timeout <= 0 {
		j.timeout = time.Minute
	}
	if j.observer == nil {
		j.observer = nopObserver{}
	}
	return j
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log.Info().Dur("interval", j.interval).Msg("cleanup janitor started")

	j.sweepLogged(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweepLogged(ctx)
		case <-ctx.Done():
			log.Info().Msg("cleanup janitor stopped")
			return
		}
	}
}

// Sweep purges both stores once. A failure in one store does not stop the other.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var res Result
	var errs []error

	n, err := j.sessions.PurgeExpired(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		res.Sessions = n
		j.observer.ObservePurge("sessions", n)
	}

	n, err = j.blacklist.PurgeBlacklist(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		res.Blacklist = n
		j.observer.ObservePurge("blacklist", n)
	}

	return res, errors.Join(errs...)
}

func (j *Janitor) sweepLogged(ctx context.Context) {
	res, err := j.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cleanup sweep failed")
	}
	if res.Sessions > 0 || res.Blacklist > 0 {
		log.Debug().Int64("sessions", res.Sessions).Int64("blacklist", res.Blacklist).Msg("cleanup sweep")
	}
}
