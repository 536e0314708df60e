package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_create_users.sql", "00002_create_messages.sql"}, names)

	for _, name := range names {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(body), "-- +goose Up"), name)
		require.True(t, strings.Contains(string(body), "-- +goose Down"), name)
	}
}
