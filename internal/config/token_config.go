package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	accessSecretVar  = "ACCESS_TOKEN_SECRET"
	refreshSecretVar = "REFRESH_TOKEN_SECRET"
	accessTTLVar     = "ACCESS_TOKEN_TTL"
	refreshTTLVar    = "REFRESH_TOKEN_TTL"
)

type TokenConfig interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type Tokens struct {
	v *viper.Viper
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetAccessTokenSecret() string {
	return t.v.GetString(accessSecretVar)
}

func (t Tokens) GetRefreshTokenSecret() string {
	return t.v.GetString(refreshSecretVar)
}

func (t Tokens) GetAccessTokenTTL() time.Duration {
	return duration(t.v, accessTTLVar)
}

// GetRefreshTokenTTL is also the lifetime of a device session.
func (t Tokens) GetRefreshTokenTTL() time.Duration {
	return duration(t.v, refreshTTLVar)
}
