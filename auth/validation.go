package auth

import (
	"fmt"
	"strings"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
)

const (
	maxLoginLength    = 254
	maxPasswordLength = 72 // bcrypt ignores anything longer
	maxDeviceIDLength = 128
)

// LoginInput is the body of a login request.
type LoginInput struct {
	LoginOrEmail string `json:"loginOrEmail"`
	Password     string `json:"password"`
}

// Validate trims the login and checks both fields are present and bounded.
func (in *LoginInput) Validate() error {
	in.LoginOrEmail = strings.TrimSpace(in.LoginOrEmail)
	if in.LoginOrEmail == "" || in.Password == "" {
		return fmt.Errorf("%w: loginOrEmail and password are required", apperrors.ErrInvalidInput)
	}
	if len(in.LoginOrEmail) > maxLoginLength || len(in.Password) > maxPasswordLength {
		return fmt.Errorf("%w: credentials too long", apperrors.ErrInvalidInput)
	}
	return nil
}

// validDeviceID rejects ids no session could have, before they reach a store.
func validDeviceID(deviceID string) bool {
	return strings.TrimSpace(deviceID) != "" && len(deviceID) <= maxDeviceIDLength
}
