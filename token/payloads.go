package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Subject is the subset of a user that tokens are built from.
type Subject struct {
	ID    string
	Email string
	Login string
}

// AccessTokenPayload is what resource handlers learn from a valid access token.
type AccessTokenPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Login string `json:"login"`
}

// RefreshTokenPayload is bound to exactly one device session through DeviceID.
type RefreshTokenPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	DeviceID  string    `json:"deviceId"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// RefreshResult is the outcome of decoding a refresh token: either a payload or
// the reason it was rejected. Callers treat every rejection the same way.
type RefreshResult struct {
	Payload RefreshTokenPayload
	Err     error
}

// Valid reports whether the token decoded to a usable payload.
func (r RefreshResult) Valid() bool {
	return r.Err == nil
}

const (
	claimEmail    = "email"
	claimLogin    = "login"
	claimDeviceID = "deviceId"
	claimTokenID  = "jti"
)

func accessPayloadFromClaims(claims jwt.MapClaims) (AccessTokenPayload, error) {
	sub, _ := claims.GetSubject()
	email, _ := claims[claimEmail].(string)
	login, _ := claims[claimLogin].(string)
	if sub == "" {
		return AccessTokenPayload{}, errors.Wrap(ErrMalformed, "access token missing sub")
	}
	return AccessTokenPayload{ID: sub, Email: email, Login: login}, nil
}

func refreshPayloadFromClaims(claims jwt.MapClaims) (RefreshTokenPayload, error) {
	sub, _ := claims.GetSubject()
	email, _ := claims[claimEmail].(string)
	deviceID, _ := claims[claimDeviceID].(string)
	jti, _ := claims[claimTokenID].(string)
	if sub == "" || email == "" || deviceID == "" {
		return RefreshTokenPayload{}, errors.Wrap(ErrMalformed, "refresh token missing sub, email or deviceId")
	}

	payload := RefreshTokenPayload{ID: sub, Email: email, DeviceID: deviceID, TokenID: jti}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		payload.IssuedAt = iat.Time.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		payload.ExpiresAt = exp.Time.UTC()
	}
	return payload, nil
}
