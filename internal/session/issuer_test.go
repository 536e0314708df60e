package session

import (
	"errors"
	"testing"
	"time"

	"messagely/internal/common"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("messagely_test_secret_key_1234567890")

func TestNewIssuerShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer([]byte("short"))
	require.Error(t, err)
}

func TestIssueResolve(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	for _, username := range []string{"alice", "bob", "user-with.dots_and-dashes"} {
		token, err := i.Issue(username)
		require.NoError(t, err)

		got, err := i.Resolve(token)
		require.NoError(t, err)
		require.Equal(t, username, got)
	}
}

func TestIssueEmptyUsername(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	_, err = i.Issue("")
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestResolveExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := NewIssuer(testSecret, TTL(time.Hour), Clock(func() time.Time { return now }))
	require.NoError(t, err)

	token, err := first.Issue("alice")
	require.NoError(t, err)

	later, err := NewIssuer(testSecret, Clock(func() time.Time { return now.Add(2 * time.Hour) }))
	require.NoError(t, err)

	_, err = later.Resolve(token)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestResolveWrongSecret(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)
	token, err := i.Issue("alice")
	require.NoError(t, err)

	other, err := NewIssuer([]byte("another_secret_key_which_is_long_enough"))
	require.NoError(t, err)

	_, err = other.Resolve(token)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestResolveMalformed(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	for _, token := range []string{"", "not.a.jwt", "garbage"} {
		_, err := i.Resolve(token)
		require.True(t, errors.Is(err, common.ErrInvalidToken), token)
	}
}

func TestResolveRejectsOtherSigningMethod(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = i.Resolve(signed)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestResolveMissingUsername(t *testing.T) {
	t.Parallel()

	i, err := NewIssuer(testSecret)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)

	_, err = i.Resolve(signed)
	require.True(t, errors.Is(err, common.ErrInvalidToken))
}
