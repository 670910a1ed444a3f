// Package auth runs the login, refresh, logout and device-management flows on top
// of the token and session managers.
package auth

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/jrsteele09/go-session-auth/internal/errors"
	"github.com/jrsteele09/go-session-auth/sessions"
	"github.com/jrsteele09/go-session-auth/store"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/jrsteele09/go-session-auth/users"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jrsteele09/go-session-auth/auth"

var (
	errMissingRefreshToken = errors.New("missing refresh token")
	errStaleRefreshToken   = errors.New("refresh token predates the session's last rotation")
	errSubjectMismatch     = errors.New("refresh token subject does not match user")
	errForeignSession      = errors.New("session belongs to another user")
)

// CredentialVerifier checks a login and password and returns the matching user.
type CredentialVerifier interface {
	VerifyUser(ctx context.Context, loginOrEmail, password string) (*users.User, error)
}

// Observer receives one call per finished flow operation.
type Observer interface {
	ObserveFlow(op, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveFlow(string, string, time.Duration) {}

// Deps are the collaborators a Flow needs. All are required.
type Deps struct {
	Users    users.Repo
	Verifier CredentialVerifier
	Sessions *sessions.Manager
	Tokens   *token.Manager
	Tx       store.Transactor
}

// ClientInfo describes the device a login comes from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TokenPair is what a successful login or refresh hands back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Me is the who-am-I view of an access token's user.
type Me struct {
	Email  string `json:"email"`
	Login  string `json:"login"`
	UserID string `json:"userId"`
}

// Device is one active session as shown to its owner.
type Device struct {
	IP             string    `json:"ip"`
	Title          string    `json:"title"`
	LastActiveDate time.Time `json:"lastActiveDate"`
	DeviceID       string    `json:"deviceId"`
}

// Flow orchestrates authentication. Every refresh-token operation is guarded the
// same way: the token must be present, not blacklisted, decodable, its user must
// exist and its session must still be live and owned by that user.
type Flow struct {
	deps            Deps
	observer        Observer
	tracer          trace.Tracer
	mutationTimeout time.Duration
}

type FlowOption func(*Flow)

func WithObserver(o Observer) FlowOption {
	return func(f *Flow) {
		f.observer = o
	}
}

func WithTracer(t trace.Tracer) FlowOption {
	return func(f *Flow) {
		f.tracer = t
	}
}

// WithMutationTimeout bounds the detached store work of refresh and logout.
func WithMutationTimeout(d time.Duration) FlowOption {
	return func(f *Flow) {
		f.mutationTimeout = d
	}
}

func NewFlow(deps Deps, options ...FlowOption) (*Flow, error) {
	if deps.Users == nil || deps.Verifier == nil || deps.Sessions == nil || deps.Tokens == nil || deps.Tx == nil {
		return nil, errors.New("[NewFlow] users, verifier, sessions, tokens and tx are required")
	}

	f := &Flow{deps: deps}
	for _, opt := range options {
		opt(f)
	}
	if f.observer == nil {
		f.observer = nopObserver{}
	}
	if f.tracer == nil {
		f.tracer = otel.Tracer(tracerName)
	}
	if f.mutationTimeout <= 0 {
		f.mutationTimeout = 5 * time.Second
	}
	return f, nil
}

// RefreshTTL is the lifetime of the refresh cookie.
func (f *Flow) RefreshTTL() time.Duration {
	return f.deps.Sessions.RefreshTTL()
}

// Login verifies credentials, opens a new device session and issues a token pair
// bound to it. Unknown users, bad passwords and unconfirmed users are all
// ErrUnauthenticated.
func (f *Flow) Login(ctx context.Context, in LoginInput, client ClientInfo) (pair TokenPair, err error) {
	ctx, done := f.begin(ctx, "login")
	defer func() { done(err) }()

	if err := in.Validate(); err != nil {
		return TokenPair{}, err
	}

	user, err := f.deps.Verifier.VerifyUser(ctx, in.LoginOrEmail, in.Password)
	if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
		return TokenPair{}, unauthenticated(err)
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !user.Confirmed {
		return TokenPair{}, unauthenticated(apperrors.ErrUserNotConfirmed)
	}

	session, err := f.deps.Sessions.GenerateSession(ctx, client.IP, client.UserAgent, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("auth.device_id", session.DeviceID))

	return f.issuePair(user, session)
}

// Refresh rotates the refresh token: the presented token is claimed (blacklisted)
// and the session bumped in one transaction, then a new pair is issued for the
// same device. A token that was already claimed is ErrUnauthenticated.
func (f *Flow) Refresh(ctx context.Context, rawRefresh string) (pair TokenPair, err error) {
	ctx, done := f.begin(ctx, "refresh")
	defer func() { done(err) }()

	rc, err := f.authenticateRefresh(ctx, rawRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	var updated *sessions.Session
	err = f.mutate(ctx, func(ctx context.Context) error {
		if err := f.claim(ctx, rc); err != nil {
			return err
		}
		s, err := f.deps.Sessions.UpdateSession(ctx, rc.session.DeviceID)
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return unauthenticated(err)
		}
		if err != nil {
			return err
		}
		updated = s
		return nil
	})
	if err != nil {
		return TokenPair{}, err
	}

	return f.issuePair(rc.user, updated)
}

// Logout claims the refresh token and deletes its session.
func (f *Flow) Logout(ctx context.Context, rawRefresh string) (err error) {
	ctx, done := f.begin(ctx, "logout")
	defer func() { done(err) }()

	rc, err := f.authenticateRefresh(ctx, rawRefresh)
	if err != nil {
		return err
	}

	return f.mutate(ctx, func(ctx context.Context) error {
		if err := f.claim(ctx, rc); err != nil {
			return err
		}
		return f.deps.Sessions.DeleteSession(ctx, rc.user.ID, rc.session.DeviceID)
	})
}

// WhoAmI resolves the user behind an access token.
func (f *Flow) WhoAmI(ctx context.Context, rawAccess string) (me Me, err error) {
	ctx, done := f.begin(ctx, "whoami")
	defer func() { done(err) }()

	payload, err := f.deps.Tokens.AccessPayload(rawAccess)
	if err != nil {
		return Me{}, err
	}

	user, err := f.deps.Users.GetByID(ctx, payload.ID)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		return Me{}, unauthenticated(err)
	}
	if err != nil {
		return Me{}, err
	}
	return Me{Email: user.Email, Login: user.Login, UserID: user.ID}, nil
}

// Devices lists the caller's active sessions, most recently active first.
func (f *Flow) Devices(ctx context.Context, rawRefresh string) (devices []Device, err error) {
	ctx, done := f.begin(ctx, "devices")
	defer func() { done(err) }()

	rc, err := f.authenticateRefresh(ctx, rawRefresh)
	if err != nil {
		return nil, err
	}

	list, err := f.deps.Sessions.AllByUser(ctx, rc.user.ID)
	if err != nil {
		return nil, err
	}

	devices = make([]Device, 0, len(list))
	for _, s := range list {
		devices = append(devices, Device{
			IP:             s.IP,
			Title:          s.UserAgentTitle,
			LastActiveDate: s.LastActiveAt,
			DeviceID:       s.DeviceID,
		})
	}
	return devices, nil
}

// TerminateOthers deletes every session of the caller except the current one.
func (f *Flow) TerminateOthers(ctx context.Context, rawRefresh string) (err error) {
	ctx, done := f.begin(ctx, "terminate_others")
	defer func() { done(err) }()

	rc, err := f.authenticateRefresh(ctx, rawRefresh)
	if err != nil {
		return err
	}
	return f.deps.Sessions.DeleteAllExcept(ctx, rc.user.ID, rc.session.DeviceID)
}

// TerminateDevice deletes one of the caller's sessions. A device that does not
// exist, or an id no device could have, is ErrNotFound; one owned by another
// user is ErrForbidden and is left alone.
func (f *Flow) TerminateDevice(ctx context.Context, rawRefresh, deviceID string) (err error) {
	ctx, done := f.begin(ctx, "terminate_device")
	defer func() { done(err) }()

	rc, err := f.authenticateRefresh(ctx, rawRefresh)
	if err != nil {
		return err
	}
	if !validDeviceID(deviceID) {
		return apperrors.Wrapf(apperrors.ErrNotFound, "device id")
	}

	target, err := f.deps.Sessions.FindSession(ctx, deviceID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperrors.Wrapf(apperrors.ErrNotFound, "device %s", deviceID)
	}
	if !target.OwnedBy(rc.user.ID) {
		return forbidden(errForeignSession)
	}
	return f.deps.Sessions.DeleteSession(ctx, rc.user.ID, deviceID)
}

type refreshContext struct {
	raw     string
	payload token.RefreshTokenPayload
	user    *users.User
	session *sessions.Session
}

func (f *Flow) authenticateRefresh(ctx context.Context, raw string) (*refreshContext, error) {
	if raw == "" {
		return nil, unauthenticated(errMissingRefreshToken)
	}

	blacklisted, err := f.deps.Tokens.IsBlacklisted(ctx, raw)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, unauthenticated(apperrors.ErrTokenRevoked)
	}

	res := f.deps.Tokens.RefreshPayload(raw)
	if !res.Valid() {
		return nil, unauthenticated(res.Err)
	}
	payload := res.Payload
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("auth.device_id", payload.DeviceID))

	user, err := f.deps.Users.GetByEmail(ctx, payload.Email)
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, unauthenticated(err)
	}
	if err != nil {
		return nil, err
	}
	if user.ID != payload.ID {
		return nil, unauthenticated(errSubjectMismatch)
	}

	session, err := f.deps.Sessions.FindSession(ctx, payload.DeviceID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, unauthenticated(apperrors.ErrSessionNotFound)
	}
	if !session.OwnedBy(user.ID) {
		return nil, forbidden(errForeignSession)
	}
	if payload.IssuedAt.Unix() != session.LastActiveAt.Unix() {
		return nil, unauthenticated(errStaleRefreshToken)
	}

	return &refreshContext{raw: raw, payload: payload, user: user, session: session}, nil
}

func (f *Flow) claim(ctx context.Context, rc *refreshContext) error {
	err := f.deps.Tokens.ClaimRefreshToken(ctx, rc.raw, rc.payload.ExpiresAt)
	if apperrors.Is(err, token.ErrTokenReused) {
		return unauthenticated(err)
	}
	return err
}

// mutate runs fn in a transaction that outlives client cancellation, so a
// disconnect mid-rotation either completes or rolls back.
func (f *Flow) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.mutationTimeout)
	defer cancel()
	return f.deps.Tx.InTx(ctx, fn)
}

func (f *Flow) issuePair(user *users.User, session *sessions.Session) (TokenPair, error) {
	sub := token.Subject{ID: user.ID, Email: user.Email, Login: user.Login}

	access, err := f.deps.Tokens.GenerateAccessToken(sub)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := f.deps.Tokens.GenerateRefreshToken(sub, session)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: session.ExpiresAt}, nil
}

func (f *Flow) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := f.tracer.Start(ctx, "auth."+op)
	started := time.Now()

	return ctx, func(err error) {
		outcome := Outcome(err)
		f.observer.ObserveFlow(op, outcome, time.Since(started))

		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)

			switch outcome {
			case OutcomeUnavailable, OutcomeError:
				log.Error().Err(err).Str("op", op).Str("outcome", outcome).Msg("auth flow failed")
			default:
				log.Warn().Err(err).Str("op", op).Str("outcome", outcome).Msg("auth flow rejected")
			}
		}
		span.End()
	}
}
