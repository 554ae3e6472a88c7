package database

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv/kvtest"
)

func TestMigrate(t *testing.T) {
	defer func(orig func(string, *sql.DB, fs.FS, string, ...string) error) { gooseRunFunc = orig }(gooseRunFunc)

	var (
		gotCmd  string
		gotArgs []string
		gotDir  string
		files   []string
	)
	gooseRunFunc = func(command string, _ *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCmd, gotArgs, gotDir = command, args, dir
		entries, err := fs.ReadDir(fsys, dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			files = append(files, e.Name())
		}
		if command == "sideways" {
			return errors.New("no such command")
		}
		return nil
	}

	require.NoError(t, Migrate(nil, "up-to", "2"))
	assert.Equal(t, "up-to", gotCmd)
	assert.Equal(t, []string{"2"}, gotArgs)
	assert.Equal(t, "migrations", gotDir)
	assert.Equal(t, []string{"00001_create_documents.sql", "00002_documents_updated_at_index.sql"}, files)

	err := Migrate(nil, "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `running migration command "sideways": no such command`)
}

// TestKVStore needs a postgres server; it runs when ELIMU_TEST_POSTGRES is set and
// reads the connection settings from the usual DATABASE_* environment.
func TestKVStore(t *testing.T) {
	if os.Getenv("ELIMU_TEST_POSTGRES") == "" {
		t.Skip("ELIMU_TEST_POSTGRES not set")
	}
	conf := core.NewTestConfig()
	conf.Database.Name += "_test"

	require.NoError(t, CreateIfNotExist(conf))
	db, err := Open(conf)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, "up"))
	_, err = db.ExecContext(context.Background(), "TRUNCATE documents")
	require.NoError(t, err)

	s := NewKVStore(db)
	defer s.Close()
	kvtest.Run(t, s)
}
