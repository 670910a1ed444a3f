package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	storageDriverVar   = "STORAGE_DRIVER"
	databaseURLVar     = "DATABASE_URL"
	sqlitePathVar      = "SQLITE_PATH"
	redisURLVar        = "REDIS_URL"
	migrateOnStartVar  = "MIGRATE_ON_START"
	cleanupIntervalVar = "CLEANUP_INTERVAL"
	dbMaxConnsVar      = "DB_MAX_CONNS"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetDatabaseURL() string
	GetSQLitePath() string
	GetRedisURL() string
	GetMigrateOnStart() bool
	GetCleanupInterval() time.Duration
	GetDBMaxConns() int32
}

type Storage struct {
	v *viper.Viper
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() string {
	return strings.ToLower(s.v.GetString(storageDriverVar))
}

func (s Storage) GetDatabaseURL() string {
	return s.v.GetString(databaseURLVar)
}

func (s Storage) GetSQLitePath() string {
	return s.v.GetString(sqlitePathVar)
}

// GetRedisURL is optional. When set, the refresh blacklist lives in Redis.
func (s Storage) GetRedisURL() string {
	return s.v.GetString(redisURLVar)
}

func (s Storage) GetMigrateOnStart() bool {
	return s.v.GetBool(migrateOnStartVar)
}

func (s Storage) GetCleanupInterval() time.Duration {
	return duration(s.v, cleanupIntervalVar)
}

func (s Storage) GetDBMaxConns() int32 {
	return s.v.GetInt32(dbMaxConnsVar)
}
