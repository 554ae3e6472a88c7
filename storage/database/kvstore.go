package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/storage/kv"
)

// serializationFailure is the postgres error code raised when a serializable transaction must be retried.
const serializationFailure = "40001"

const (
	qGetDocument       = `SELECT body FROM documents WHERE key = $1`
	qGetDocumentLocked = `SELECT body FROM documents WHERE key = $1 FOR UPDATE`
	qUpsertDocument    = `INSERT INTO documents (key, body, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`
	qDeleteDocument = `DELETE FROM documents WHERE key = $1`
)

type (
	// KVStore is a kv.Store over the documents table. Update runs a serializable transaction.
	KVStore struct {
		db *sqlx.DB
	}

	queryer interface {
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}

	kvReader struct {
		ctx   context.Context
		q     queryer
		query string
	}

	kvTxn struct {
		kvReader
		tx *sqlx.Tx
	}
)

var _ kv.Store = (*KVStore)(nil)

func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: sqlx.NewDb(db, "postgres")}
}

func (s *KVStore) View(ctx context.Context, fn func(r kv.Reader) error) error {
	return fn(kvReader{ctx: ctx, q: s.db, query: qGetDocument})
}

func (s *KVStore) Update(ctx context.Context, fn func(t kv.Txn) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == serializationFailure {
				err = kv.ErrConflict
			}
		}
	}()

	if err = fn(&kvTxn{kvReader: kvReader{ctx: ctx, q: tx, query: qGetDocumentLocked}, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KVStore) Close() error {
	return s.db.Close()
}

func (r kvReader) Get(key string) ([]byte, error) {
	var body []byte
	if err := r.q.GetContext(r.ctx, &body, r.query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, kv.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting document %q", key)
	}
	return body, nil
}

func (t *kvTxn) Set(key string, value []byte) error {
	_, err := t.tx.ExecContext(t.ctx, qUpsertDocument, key, value)
	return errors.Wrapf(err, "setting document %q", key)
}

func (t *kvTxn) Delete(key string) error {
	_, err := t.tx.ExecContext(t.ctx, qDeleteDocument, key)
	return errors.Wrapf(err, "deleting document %q", key)
}
