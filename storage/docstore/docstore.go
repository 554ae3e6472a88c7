// Package docstore persists each record type as one versioned JSON document in a kv.Store.
//
// A document looks like {"schema_version": 1, "revision": R, "records": ...}.
// Documents written before versioning (the bare payload) are read as schema version 0
// and upgraded on their next write.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/storage/kv"
)

// SchemaVersion is the document layout written by this package.
const SchemaVersion = 1

// document keys
const (
	keyStaff        = "staff"
	keyStudents     = "students"
	keySessions     = "sessions"
	keyObservations = "observations"
	keyGraph        = "graph"
	keyLessons      = "lessons"
)

var ErrSchemaVersion = errors.New("document schema version is newer than supported")

type (
	Store struct {
		kv kv.Store
	}

	envelope struct {
		SchemaVersion int             `json:"schema_version"`
		Revision      int64           `json:"revision"`
		Records       json.RawMessage `json:"records"`
	}

	txnKey struct{}
)

var _ core.Transactor = (*Store)(nil)

func New(kvs kv.Store) *Store {
	return &Store{kv: kvs}
}

// InTx runs fn in a kv write transaction. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txnKey{}).(kv.Txn); ok {
		return fn(ctx)
	}
	return s.kv.Update(ctx, func(txn kv.Txn) error {
		return fn(context.WithValue(ctx, txnKey{}, txn))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

// view reads through the transaction carried by ctx, or a fresh read-only one.
func (s *Store) view(ctx context.Context, fn func(r kv.Reader) error) error {
	if txn, ok := ctx.Value(txnKey{}).(kv.Txn); ok {
		return fn(txn)
	}
	return s.kv.View(ctx, fn)
}

// update writes through the transaction carried by ctx, or a fresh one.
func (s *Store) update(ctx context.Context, fn func(txn kv.Txn) error) error {
	if txn, ok := ctx.Value(txnKey{}).(kv.Txn); ok {
		return fn(txn)
	}
	return s.kv.Update(ctx, fn)
}

// readDoc decodes the records of key into out and returns the document revision.
// A missing key leaves out untouched. legacy decodes a versionless document.
func readDoc(r kv.Reader, key string, out interface{}, legacy func(raw []byte) error) (int64, error) {
	raw, err := r.Get(key)
	if err != nil {
		if errors.Cause(err) == kv.ErrNotFound {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "reading %s", key)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, nil
	}
	if raw[0] == '[' {
		return 0, errors.Wrapf(legacy(raw), "decoding legacy %s", key)
	}

	var probe map[string]json.RawMessage
	if err = json.Unmarshal(raw, &probe); err != nil {
		return 0, errors.Wrapf(err, "decoding %s", key)
	}
	if _, ok := probe["schema_version"]; !ok {
		return 0, errors.Wrapf(legacy(raw), "decoding legacy %s", key)
	}

	var env envelope
	if err = json.Unmarshal(raw, &env); err != nil {
		return 0, errors.Wrapf(err, "decoding %s", key)
	}
	if env.SchemaVersion > SchemaVersion {
		return 0, errors.Wrapf(ErrSchemaVersion, "%s has schema version %d", key, env.SchemaVersion)
	}
	if len(env.Records) > 0 {
		if err = json.Unmarshal(env.Records, out); err != nil {
			return 0, errors.Wrapf(err, "decoding %s records", key)
		}
	}
	return env.Revision, nil
}

// writeDoc stores records under key with the next revision.
func writeDoc(txn kv.Txn, key string, records interface{}, revision int64) error {
	recs, err := json.Marshal(records)
	if err != nil {
		return errors.Wrapf(err, "encoding %s records", key)
	}
	raw, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Revision: revision + 1, Records: recs})
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(txn.Set(key, raw), "writing %s", key)
}

// collection is a document holding an ordered list of records keyed by id.
type collection[T any] struct {
	store *Store
	key   string
	id    func(T) string
}

// load decodes the records. A legacy document is either a bare array or a single record object.
func (c collection[T]) load(r kv.Reader) ([]T, int64, error) {
	recs := make([]T, 0)
	rev, err := readDoc(r, c.key, &recs, func(raw []byte) error {
		if raw[0] == '[' {
			return json.Unmarshal(raw, &recs)
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	})
	return recs, rev, err
}

func (c collection[T]) all(ctx context.Context) ([]T, error) {
	var recs []T
	err := c.store.view(ctx, func(r kv.Reader) error {
		var err error
		recs, _, err = c.load(r)
		return err
	})
	return recs, err
}

// find returns the first record matching pred, or notFound.
func (c collection[T]) find(ctx context.Context, pred func(T) bool, notFound error) (T, error) {
	var (
		found T
		ok    bool
	)
	err := c.store.view(ctx, func(r kv.Reader) error {
		recs, _, err := c.load(r)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if pred(rec) {
				found, ok = rec, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return found, err
	}
	if !ok {
		return found, notFound
	}
	return found, nil
}

func (c collection[T]) get(ctx context.Context, id string, notFound error) (T, error) {
	return c.find(ctx, func(rec T) bool { return c.id(rec) == id }, notFound)
}

// mutate loads the records, applies fn and stores the result, in one transaction.
func (c collection[T]) mutate(ctx context.Context, fn func(recs []T) ([]T, error)) error {
	return c.store.update(ctx, func(txn kv.Txn) error {
		recs, rev, err := c.load(txn)
		if err != nil {
			return err
		}
		if recs, err = fn(recs); err != nil {
			return err
		}
		return writeDoc(txn, c.key, recs, rev)
	})
}

// insert appends rec, failing with exists if its id is taken.
func (c collection[T]) insert(ctx context.Context, rec T, exists error) (T, error) {
	err := c.mutate(ctx, func(recs []T) ([]T, error) {
		for _, r := range recs {
			if c.id(r) == c.id(rec) {
				return nil, exists
			}
		}
		return append(recs, rec), nil
	})
	return rec, err
}

// replace swaps the stored record having rec's id, failing with notFound if there is none.
// prepare receives the stored record and may adjust rec (e.g. bump its version) before the write.
func (c collection[T]) replace(ctx context.Context, rec T, notFound error, prepare func(stored T, rec *T)) (T, error) {
	err := c.mutate(ctx, func(recs []T) ([]T, error) {
		for i := range recs {
			if c.id(recs[i]) == c.id(rec) {
				if prepare != nil {
					prepare(recs[i], &rec)
				}
				recs[i] = rec
				return recs, nil
			}
		}
		return nil, notFound
	})
	return rec, err
}

// remove deletes the records with the given ids. Unknown ids are ignored.
func (c collection[T]) remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return c.mutate(ctx, func(recs []T) ([]T, error) {
		kept := recs[:0]
		for _, rec := range recs {
			if !drop[c.id(rec)] {
				kept = append(kept, rec)
			}
		}
		return kept, nil
	})
}
