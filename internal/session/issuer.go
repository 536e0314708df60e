// Package session issues stateless signed tokens for authenticated users and
// resolves them back to usernames.
package session

import (
	"errors"
	"fmt"
	"time"

	"messagely/internal/common"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength is the shortest accepted signing secret in bytes
	MinSecretLength = 32
	// DefaultTTL is the token lifetime used when none is configured
	DefaultTTL = 24 * time.Hour

	issuer = "messagely"
)

// Claims embeds the registered claims and the username the token asserts
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Option configures an Issuer
type Option func(*Issuer)

// TTL sets how long issued tokens stay valid
func TTL(d time.Duration) Option {
	return func(i *Issuer) {
		if d > 0 {
			i.ttl = d
		}
	}
}

// Clock replaces the time source used for issuing and validating tokens
func Clock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// Issuer signs and verifies HS256 tokens with a secret fixed at construction
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}

	i := &Issuer{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Issue returns a signed token asserting username
func (i *Issuer) Issue(username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("empty username: %w", common.ErrValidation)
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	return token.SignedString(i.secret)
}

// Resolve verifies token and returns the username it asserts.
// The username is a claim, it is not checked against stored users.
func (i *Issuer) Resolve(tokenString string) (string, error) {
	if tokenString == "" {
		return "", fmt.Errorf("empty token: %w", common.ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", errors.Join(common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", common.ErrInvalidToken
	}

	if claims.Username == "" || claims.Subject != claims.Username {
		return "", fmt.Errorf("token subject does not match username: %w", common.ErrInvalidToken)
	}

	return claims.Username, nil
}
