// Package kv defines the key-value persistence primitive the document store is built on.
package kv

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	ErrNotFound = errors.New("key not found")
	// ErrConflict is returned by Store.Update when a concurrent writer changed a key read by fn.
	ErrConflict = errors.WithMessage(core.ErrConflict, "kv transaction")
)

type (
	Reader interface {
		// Get returns ErrNotFound if key is absent.
		Get(key string) ([]byte, error)
	}

	Txn interface {
		Reader
		Set(key string, value []byte) error
		Delete(key string) error
	}

	// Store is a transactional key-value store.
	// Update is all-or-nothing: writes become visible only when fn returns nil.
	Store interface {
		View(ctx context.Context, fn func(r Reader) error) error
		Update(ctx context.Context, fn func(txn Txn) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
