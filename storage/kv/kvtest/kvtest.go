// Package kvtest checks kv.Store implementations against the behavior the document store relies on.
package kvtest

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/storage/kv"
)

var errAbort = errors.New("abort")

// Run runs the conformance suite against s. s must be empty.
func Run(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()

	get := func(t *testing.T, key string) ([]byte, error) {
		t.Helper()
		var val []byte
		err := s.View(ctx, func(r kv.Reader) error {
			var err error
			val, err = r.Get(key)
			return err
		})
		return val, err
	}

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := get(t, "missing")
		assert.Equal(t, kv.ErrNotFound, errors.Cause(err))
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
			return txn.Set("staff", []byte(`[{"id":"user-1"}]`))
		}))
		val, err := get(t, "staff")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"user-1"}]`, string(val))

		val[0] = 'X'
		again, err := get(t, "staff")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"user-1"}]`, string(again), "returned values are copies")
	})

	t.Run("read your writes", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
			if err := txn.Set("students", []byte("v1")); err != nil {
				return err
			}
			val, err := txn.Get("students")
			if err != nil {
				return err
			}
			assert.Equal(t, "v1", string(val))

			if err = txn.Delete("students"); err != nil {
				return err
			}
			_, err = txn.Get("students")
			assert.Equal(t, kv.ErrNotFound, errors.Cause(err))
			return txn.Set("students", []byte("v2"))
		}))
		val, err := get(t, "students")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(val))
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		err := s.Update(ctx, func(txn kv.Txn) error {
			if err := txn.Set("staff", []byte("overwritten")); err != nil {
				return err
			}
			if err := txn.Set("lessons", []byte("new")); err != nil {
				return err
			}
			if err := txn.Delete("students"); err != nil {
				return err
			}
			return errAbort
		})
		assert.Equal(t, errAbort, errors.Cause(err))

		val, err := get(t, "staff")
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"user-1"}]`, string(val))
		_, err = get(t, "lessons")
		assert.Equal(t, kv.ErrNotFound, errors.Cause(err))
		_, err = get(t, "students")
		assert.NoError(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
			return txn.Delete("students")
		}))
		_, err := get(t, "students")
		assert.Equal(t, kv.ErrNotFound, errors.Cause(err))
	})
}

// RunConflict checks that an update whose read key is changed by a concurrent writer fails
// with kv.ErrConflict and writes nothing. s must allow a second Update while one is open.
func RunConflict(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(txn kv.Txn) error {
		return txn.Set("sessions", []byte("v1"))
	}))

	err := s.Update(ctx, func(txn kv.Txn) error {
		if _, err := txn.Get("sessions"); err != nil {
			return err
		}
		// concurrent writer
		if err := s.Update(ctx, func(other kv.Txn) error {
			return other.Set("sessions", []byte("v2"))
		}); err != nil {
			return err
		}
		return txn.Set("sessions", []byte("v3"))
	})
	assert.Equal(t, kv.ErrConflict, err)

	var val []byte
	require.NoError(t, s.View(ctx, func(r kv.Reader) error {
		var err error
		val, err = r.Get("sessions")
		return err
	}))
	assert.Equal(t, "v2", string(val))
}
