package config

import "github.com/spf13/viper"

const (
	rateLimitRPSVar   = "RATE_LIMIT_RPS"
	rateLimitBurstVar = "RATE_LIMIT_BURST"
	cookieSecureVar   = "COOKIE_SECURE"
	seedEmailVar      = "SEED_USER_EMAIL"
	seedLoginVar      = "SEED_USER_LOGIN"
	seedPasswordVar   = "SEED_USER_PASSWORD"
)

// SeedUser is a confirmed account created at startup in DEV.
type SeedUser struct {
	Email    string
	Login    string
	Password string
}

type SecurityConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetCookieSecure() bool
	GetSeedUser() (SeedUser, bool)
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetRateLimitRPS is the per-IP request rate allowed on auth routes. Zero disables limiting.
func (s Security) GetRateLimitRPS() float64 {
	return s.v.GetFloat64(rateLimitRPSVar)
}

func (s Security) GetRateLimitBurst() int {
	return s.v.GetInt(rateLimitBurstVar)
}

func (s Security) GetCookieSecure() bool {
	return s.v.GetBool(cookieSecureVar)
}

// GetSeedUser reports the seed account, if all its fields are set.
func (s Security) GetSeedUser() (SeedUser, bool) {
	u := SeedUser{
		Email:    s.v.GetString(seedEmailVar),
		Login:    s.v.GetString(seedLoginVar),
		Password: s.v.GetString(seedPasswordVar),
	}
	return u, u.Email != "" && u.Login != "" && u.Password != ""
}
