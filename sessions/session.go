package sessions

import (
	"time"
)

// Session is the server-side record of one signed-in device.
// There is at most one Session per (UserID, DeviceID) and DeviceID is never reused.
type Session struct {
	UserID         string    // Owner of the session
	DeviceID       string    // Minted on login, stable across refresh-token rotations
	IP             string    // Client address seen at login
	UserAgentTitle string    // User-Agent header seen at login
	LastActiveAt   time.Time // Bumped on every refresh
	ExpiresAt      time.Time // Never earlier than the newest refresh token's expiry
}

// Expired reports whether the session has passively expired at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// OwnedBy reports whether userID owns the session.
func (s *Session) OwnedBy(userID string) bool {
	return s.UserID == userID
}
