// Package badgerkv is an embedded kv.Store backed by badger.
package badgerkv

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv"
)

type (
	Store struct {
		db *badger.DB
	}

	txn struct {
		txn *badger.Txn
	}

	// badgerLogger adapts core.Logger to badger.Logger.
	badgerLogger struct {
		logger core.Logger
	}
)

var _ kv.Store = (*Store)(nil)

// Open opens (or creates) the database in dir. An empty dir opens an in-memory database.
func Open(dir string, logger core.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	return &Store{db: db}, nil
}

func (s *Store) View(_ context.Context, fn func(r kv.Reader) error) error {
	return s.db.View(func(t *badger.Txn) error {
		return fn(txn{t})
	})
}

func (s *Store) Update(_ context.Context, fn func(t kv.Txn) error) error {
	err := s.db.Update(func(t *badger.Txn) error {
		return fn(txn{t})
	})
	if errors.Cause(err) == badger.ErrConflict {
		return kv.ErrConflict
	}
	return err
}

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger is closed")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (t txn) Get(key string) ([]byte, error) {
	item, err := t.txn.Get([]byte(key))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t txn) Set(key string, value []byte) error {
	return t.txn.Set([]byte(key), value)
}

func (t txn) Delete(key string) error {
	return t.txn.Delete([]byte(key))
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
