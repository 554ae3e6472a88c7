// Package memkv is an in-process kv.Store. Writers are serialized.
package memkv

import (
	"context"
	"sync"

	"github.com/trezcool/elimu/storage/kv"
)

type (
	Store struct {
		mutex sync.RWMutex
		table map[string][]byte
	}

	reader struct {
		table map[string][]byte
	}

	txn struct {
		reader
		staged  map[string][]byte
		deleted map[string]bool
	}
)

var _ kv.Store = (*Store)(nil)

func New() *Store {
	return &Store{table: make(map[string][]byte)}
}

func (s *Store) View(_ context.Context, fn func(r kv.Reader) error) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return fn(reader{table: s.table})
}

func (s *Store) Update(_ context.Context, fn func(txn kv.Txn) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	t := &txn{
		reader:  reader{table: s.table},
		staged:  make(map[string][]byte),
		deleted: make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}
	for key := range t.deleted {
		delete(s.table, key)
	}
	for key, val := range t.staged {
		s.table[key] = val
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error              { return nil }

func (r reader) Get(key string) ([]byte, error) {
	val, ok := r.table[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return copyBytes(val), nil
}

func (t *txn) Get(key string) ([]byte, error) {
	if t.deleted[key] {
		return nil, kv.ErrNotFound
	}
	if val, ok := t.staged[key]; ok {
		return copyBytes(val), nil
	}
	return t.reader.Get(key)
}

func (t *txn) Set(key string, value []byte) error {
	delete(t.deleted, key)
	t.staged[key] = copyBytes(value)
	return nil
}

func (t *txn) Delete(key string) error {
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
