// Package token signs and verifies the JWTs handed out by the session
// manager.  Access and refresh tokens are signed with independent HS256
// secrets, so a leaked access secret cannot mint refresh tokens and vice
// versa.  The codec is stateless: revocation is a policy of the caller.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind selects the secret and lifetime used for a token.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

// PrincipalKind tells user tokens and admin tokens apart so that one cannot
// be presented where the other is expected.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "user"
	PrincipalAdmin PrincipalKind = "admin"
)

var (
	// ErrExpiredToken is returned when the token's exp is in the past.
	ErrExpiredToken = errors.New("token expired")
	// ErrMalformedToken covers bad structure, wrong algorithm and signatures
	// that do not match the secret of the requested kind.
	ErrMalformedToken = errors.New("malformed or forged token")
)

// Claims is the payload of both token kinds.  Refresh tokens additionally
// carry a unique instance id in the standard jti claim.
type Claims struct {
	PrincipalID string        `json:"userId"`
	Role        string        `json:"userType"`
	Email       string        `json:"email"`
	Principal   PrincipalKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenID returns the refresh-token instance id (empty for access tokens).
func (c *Claims) TokenID() string { return c.ID }

// Signed is an issued token together with the metadata callers need.
type Signed struct {
	Token     string
	ExpiresAt time.Time
	TokenID   string
}

// Config carries the per-kind secrets and lifetimes.
type Config struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
	Issuer        string
}

type keyConfig struct {
	secret []byte
	ttl    time.Duration
}

// Codec issues and verifies tokens.  Safe for concurrent use.
type Codec struct {
	keys   map[Kind]keyConfig
	issuer string
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock replaces time.Now, mainly for tests that need to move past
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: both access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	c := &Codec{
		keys: map[Kind]keyConfig{
			Access:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			Refresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration { return c.keys[kind].ttl }

// Issue signs claims as a token of the given kind.  Registered time claims
// are always overwritten; a refresh token receives a fresh jti unless the
// caller already set one.
func (c *Codec) Issue(kind Kind, claims Claims) (Signed, error) {
	key, ok := c.keys[kind]
	if !ok {
		return Signed{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	now := c.now().UTC()

	claims.Subject = claims.PrincipalID
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(key.ttl))
	if kind == Refresh {
		if claims.ID == "" {
			claims.ID = uuid.NewString()
		}
	} else {
		claims.ID = ""
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(key.secret)
	if err != nil {
		return Signed{}, fmt.Errorf("token: sign %s: %w", kind, err)
	}
	return Signed{Token: signed, ExpiresAt: claims.ExpiresAt.Time, TokenID: claims.ID}, nil
}

// Verify checks signature, algorithm and expiry of raw against the secret
// of kind.  It returns ErrExpiredToken or ErrMalformedToken (wrapped) on
// failure and never consults any revocation state.
func (c *Codec) Verify(kind Kind, raw string) (*Claims, error) {
	key, ok := c.keys[kind]
	if !ok {
		return nil, fmt.Errorf("token: unknown kind %q", kind)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformedToken
		}
		return key.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !tok.Valid || claims.PrincipalID == "" {
		return nil, ErrMalformedToken
	}
	if kind == Refresh && claims.ID == "" {
		return nil, fmt.Errorf("%w: refresh token without jti", ErrMalformedToken)
	}
	return claims, nil
}
