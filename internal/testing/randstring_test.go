package testing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandString(t *testing.T) {
	t.Parallel()

	s := RandString()
	require.Len(t, s, 10)
	for _, r := range s {
		require.True(t, strings.ContainsRune(letters, r))
	}
	require.NotEqual(t, s, RandString())
}

func TestRandPhone(t *testing.T) {
	t.Parallel()

	p := RandPhone()
	require.Len(t, p, 12)
	require.True(t, strings.HasPrefix(p, "+1"))
	require.Equal(t, "", strings.Trim(p[2:], digits))
}
