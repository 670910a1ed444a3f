// Package config reads service settings from the environment and an optional .env
// file through viper. Settings are exposed as getter interfaces so components
// depend only on the slice they use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	StorageConfig
	SecurityConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsDev() bool
}

type CorsConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Storage
	Security
}

type loadOptions struct {
	envFile string
}

type Option func(*loadOptions)

// WithEnvFile reads settings from path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// Load builds the config. A missing env file is ignored; environment variables
// override values from the file.
func Load(options ...Option) (Config, error) {
	opts := loadOptions{envFile: ".env"}
	for _, opt := range options {
		opt(&opts)
	}

	v := viper.New()
	v.SetConfigFile(opts.envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !isMissingFile(err) {
		return nil, fmt.Errorf("config: read %s: %w", opts.envFile, err)
	}
	v.AutomaticEnv()
	setDefaults(v)

	cfg := mainConfig{
		EnvVars:  EnvVars{v: v},
		Cors:     Cors{v: v},
		Tokens:   Tokens{v: v},
		Storage:  Storage{v: v},
		Security: Security{v: v},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "8080")
	v.SetDefault(appNameVar, "Go Session Auth")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(allowedOriginsVar, "http://localhost:3000")
	v.SetDefault(accessTTLVar, "10m")
	v.SetDefault(refreshTTLVar, "480h")
	v.SetDefault(storageDriverVar, DriverMemory)
	v.SetDefault(sqlitePathVar, "./data/auth.db")
	v.SetDefault(migrateOnStartVar, true)
	v.SetDefault(cleanupIntervalVar, "10m")
	v.SetDefault(dbMaxConnsVar, 10)
	v.SetDefault(rateLimitRPSVar, 5.0)
	v.SetDefault(rateLimitBurstVar, 10)
	v.SetDefault(cookieSecureVar, true)
}

// Validate rejects settings the service cannot start with.
func (c mainConfig) Validate() error {
	var errs []error

	access, refresh := c.GetAccessTokenSecret(), c.GetRefreshTokenSecret()
	if access == "" || refresh == "" {
		errs = append(errs, fmt.Errorf("config: %s and %s must be set", accessSecretVar, refreshSecretVar))
	} else if access == refresh {
		errs = append(errs, fmt.Errorf("config: %s and %s must differ", accessSecretVar, refreshSecretVar))
	}

	if c.GetAccessTokenTTL() <= 0 || c.GetRefreshTokenTTL() <= 0 {
		errs = append(errs, fmt.Errorf("config: %s and %s must be positive durations", accessTTLVar, refreshTTLVar))
	} else if c.GetAccessTokenTTL() >= c.GetRefreshTokenTTL() {
		errs = append(errs, fmt.Errorf("config: %s must be shorter than %s", accessTTLVar, refreshTTLVar))
	}

	switch c.GetStorageDriver() {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.GetDatabaseURL() == "" {
			errs = append(errs, fmt.Errorf("config: %s is required for storage driver %s", databaseURLVar, DriverPostgres))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown %s %q", storageDriverVar, c.GetStorageDriver()))
	}

	if !c.IsDev() && !c.GetCookieSecure() {
		errs = append(errs, fmt.Errorf("config: %s may only be disabled in DEV", cookieSecureVar))
	}

	return errors.Join(errs...)
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func duration(v *viper.Viper, key string) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0
	}
	return d
}
