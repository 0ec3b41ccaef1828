package sqlvault

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReportsMigrationFailure(t *testing.T) {
	old := migrate
	t.Cleanup(func() { migrate = old })
	migrate = func(context.Context, Dialect, *sql.DB) error {
		return errors.New("bad migration")
	}
	_, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "db"))
	require.ErrorContains(t, err, "bad migration")
}

func TestMigrationsAreEmbedded(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		fsys, err := d.migrationFS()
		require.NoError(t, err)
		_, err = fsys.Open("00001_init.sql")
		require.NoError(t, err, d.Name)
	}
}
