package token

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Kind selects the secret a token is signed and verified with.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

const claimType = "typ"

// Decode failures. Every failure of Codec.Decode wraps exactly one of these.
var (
	ErrMalformed        = stderrors.New("token malformed")
	ErrInvalidSignature = stderrors.New("token signature invalid")
	ErrExpired          = stderrors.New("token expired")
)

// Codec signs and verifies access and refresh tokens. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	signers map[Kind]Signer
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

func WithCodecNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec builds a codec with one HMAC secret per kind. The secrets must differ
// so a leaked access secret cannot forge refresh tokens.
func NewCodec(accessSecret, refreshSecret string, options ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}

	c := &Codec{
		signers: map[Kind]Signer{
			KindAccess:  NewHMACSigner(accessSecret),
			KindRefresh: NewHMACSigner(refreshSecret),
		},
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c, nil
}

// Issue signs claims as a token of the given kind, stamping iat, exp and typ.
func (c *Codec) Issue(kind Kind, claims jwt.MapClaims, issuedAt, expiresAt time.Time) (string, error) {
	signer, ok := c.signers[kind]
	if !ok {
		return "", errors.Errorf("unknown token kind %q", kind)
	}

	signed := make(jwt.MapClaims, len(claims)+3)
	for k, v := range claims {
		signed[k] = v
	}
	signed["iat"] = issuedAt.Unix()
	signed["exp"] = expiresAt.Unix()
	signed[claimType] = string(kind)

	return signer.Sign(signed)
}

// Decode verifies raw as a token of the given kind and returns its claims.
func (c *Codec) Decode(kind Kind, raw string) (jwt.MapClaims, error) {
	signer, ok := c.signers[kind]
	if !ok {
		return nil, errors.Errorf("unknown token kind %q", kind)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowFunc),
	)

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, signer.GetVerificationKey); err != nil {
		return nil, classify(err)
	}

	if typ, _ := claims[claimType].(string); typ != string(kind) {
		return nil, errors.Wrapf(ErrMalformed, "token type %q, want %q", typ, kind)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrap(ErrExpired, err.Error())
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenUnverifiable),
		stderrors.Is(err, jwt.ErrSignatureInvalid):
		return errors.Wrap(ErrInvalidSignature, err.Error())
	default:
		return errors.Wrap(ErrMalformed, err.Error())
	}
}
