package badgerkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv"
	"github.com/trezcool/elimu/storage/kv/kvtest"
)

func open(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir, core.NewNopLogger())
	require.NoError(t, err)
	return s
}

func TestStore(t *testing.T) {
	s := open(t, "")
	defer s.Close()
	kvtest.Run(t, s)
}

func TestStore_conflict(t *testing.T) {
	s := open(t, "")
	defer s.Close()
	kvtest.RunConflict(t, s)
}

func TestStore_persistent(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	kvtest.Run(t, s)
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()), "closed")

	reopened := open(t, dir)
	defer reopened.Close()
	require.NoError(t, reopened.View(context.Background(), func(r kv.Reader) error {
		val, err := r.Get("staff")
		if err != nil {
			return err
		}
		assert.Equal(t, `[{"id":"user-1"}]`, string(val))
		return nil
	}))
}
