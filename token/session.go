// Package token issues and verifies signed session tokens. A token is the
// sole artifact of a session: there is no server-side session record and no
// revocation path, only the expiry embedded in the claims.
package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-users-service/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Verification failures. Verify returns exactly one of these.
var (
	ErrMalformed        = errors.New("malformed session token")
	ErrInvalidSignature = errors.New("invalid session token signature")
	ErrExpired          = errors.New("expired session token")
)

// SessionClaims is the identity and expiry data embedded in a session token.
type SessionClaims struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin"`
	jwtlib.RegisteredClaims
}

// Codec creates and verifies HS256 session tokens with a process-wide
// secret. The secret and lifetime are fixed at construction; the codec never
// mutates or rotates them.
type Codec struct {
	secret   []byte
	lifetime time.Duration
}

func NewCodec(secret string, lifetime time.Duration) *Codec {
	return &Codec{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

// Issue signs a session token for the given user.
func (c *Codec) Issue(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := &SessionClaims{
		UserID: user.ID,
		Name:   user.Name,
		Admin:  user.IsAdmin,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(c.lifetime)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Issue] failed to sign session token")
	}
	return signed, nil
}

// Verify parses raw and returns its claims. Failures map onto exactly one of
// ErrMalformed, ErrInvalidSignature or ErrExpired. No issuer or audience
// checks are performed.
func (c *Codec) Verify(raw string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, c.verificationKey,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSignature
	default:
		return nil, ErrMalformed
	}
}

func (c *Codec) verificationKey(t *jwtlib.Token) (any, error) {
	if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return c.secret, nil
}
