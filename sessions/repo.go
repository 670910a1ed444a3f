package sessions

import (
	"context"
	"time"
)

// Repo defines the interface for device session storage.
// Implementations return errors.ErrSessionNotFound (internal/errors) for missing rows
// and must enforce uniqueness of DeviceID.
type Repo interface {
	// Insert stores a new session. It fails if the device id already exists.
	Insert(ctx context.Context, session *Session) error

	// Get retrieves a session by device id
	Get(ctx context.Context, deviceID string) (*Session, error)

	// Touch sets LastActiveAt and ExpiresAt for an existing session in place
	Touch(ctx context.Context, deviceID string, lastActiveAt, expiresAt time.Time) error

	// ListByUser returns the user's sessions ordered by LastActiveAt, newest first
	ListByUser(ctx context.Context, userID string) ([]*Session, error)

	// Delete removes the (userID, deviceID) row. Missing rows are not an error.
	Delete(ctx context.Context, userID, deviceID string) error

	// DeleteAllExcept removes every session of userID other than exceptDeviceID
	DeleteAllExcept(ctx context.Context, userID, exceptDeviceID string) (int64, error)

	// DeleteExpired removes sessions whose ExpiresAt is not after now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
