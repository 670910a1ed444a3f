// Command migrate applies or rolls back the schema of the configured SQL store.
//
//	migrate up
//	migrate down
package main

import (
	"fmt"
	"os"

	"github.com/jrsteele09/go-session-auth/internal/config"
	"github.com/jrsteele09/go-session-auth/internal/logging"
	"github.com/jrsteele09/go-session-auth/store/postgres"
	"github.com/jrsteele09/go-session-auth/store/sqlite"
	"github.com/rs/zerolog/log"
)

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	if err := run(direction); err != nil {
		log.Fatal().Err(err).Str("direction", direction).Msg("migration failed")
	}
	log.Info().Str("direction", direction).Msg("migration complete")
}

func run(direction string) error {
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	logging.Setup(c.GetEnv(), c.GetLogLevel())

	switch c.GetStorageDriver() {
	case config.DriverPostgres:
		return postgres.Migrate(c.GetDatabaseURL(), direction)
	case config.DriverSQLite:
		db, err := sqlite.Open(c.GetSQLitePath())
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return sqlite.Migrate(db, direction)
	default:
		return fmt.Errorf("storage driver %q has no schema", c.GetStorageDriver())
	}
}
