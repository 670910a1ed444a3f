package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-for-tests"
	refreshSecret = "refresh-secret-for-tests"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestCodec(t *testing.T, now func() time.Time) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(accessSecret, refreshSecret, token.WithCodecNowFunc(now))
	require.NoError(t, err)
	return c
}

func TestNewCodec_Secrets(t *testing.T) {
	_, err := token.NewCodec("", refreshSecret)
	require.Error(t, err)

	_, err = token.NewCodec(accessSecret, "  ")
	require.Error(t, err)

	_, err = token.NewCodec("same", "same")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must differ")
}

func TestCodec_IssueDecode(t *testing.T) {
	c := newTestCodec(t, fixedNow)
	now := fixedNow()

	raw, err := c.Issue(token.KindAccess, jwt.MapClaims{"sub": "user-1", "email": "a@b.c"}, now, now.Add(time.Minute))
	require.NoError(t, err)

	claims, err := c.Decode(token.KindAccess, raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "a@b.c", claims["email"])
	require.Equal(t, "access", claims["typ"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Minute).Unix(), exp.Unix())
}

func TestCodec_DecodeFailures(t *testing.T) {
	now := fixedNow()
	c := newTestCodec(t, fixedNow)

	refresh, err := c.Issue(token.KindRefresh, jwt.MapClaims{"sub": "user-1"}, now, now.Add(time.Hour))
	require.NoError(t, err)

	t.Run("wrong kind uses the other secret", func(t *testing.T) {
		_, err := c.Decode(token.KindAccess, refresh)
		require.ErrorIs(t, err, token.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(refresh, ".")
		require.Len(t, parts, 3)
		other, err := c.Issue(token.KindRefresh, jwt.MapClaims{"sub": "admin"}, now, now.Add(time.Hour))
		require.NoError(t, err)
		forged := parts[0] + "." + strings.Split(other, ".")[1] + "." + parts[2]

		_, err = c.Decode(token.KindRefresh, forged)
		require.ErrorIs(t, err, token.ErrInvalidSignature)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestCodec(t, func() time.Time { return now.Add(time.Hour) })
		_, err := later.Decode(token.KindRefresh, refresh)
		require.ErrorIs(t, err, token.ErrExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := c.Decode(token.KindRefresh, "not-a-token")
		require.ErrorIs(t, err, token.ErrMalformed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := c.Decode(token.KindRefresh, "")
		require.ErrorIs(t, err, token.ErrMalformed)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "user-1",
			"typ": "refresh",
			"exp": now.Add(time.Hour).Unix(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = c.Decode(token.KindRefresh, unsigned)
		require.ErrorIs(t, err, token.ErrInvalidSignature)
	})

	t.Run("missing exp", func(t *testing.T) {
		noExp, err := token.NewHMACSigner(refreshSecret).Sign(jwt.MapClaims{"sub": "user-1", "typ": "refresh"})
		require.NoError(t, err)
		_, err = c.Decode(token.KindRefresh, noExp)
		require.ErrorIs(t, err, token.ErrMalformed)
	})

	t.Run("type claim must match kind", func(t *testing.T) {
		// A codec whose access secret equals our refresh secret verifies the
		// signature but still refuses a refresh token as an access token.
		swapped, err := token.NewCodec(refreshSecret, accessSecret, token.WithCodecNowFunc(fixedNow))
		require.NoError(t, err)
		_, err = swapped.Decode(token.KindAccess, refresh)
		require.ErrorIs(t, err, token.ErrMalformed)
	})
}
