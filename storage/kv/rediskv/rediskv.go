// Package rediskv is a networked kv.Store backed by redis.
// Update uses WATCH/MULTI/EXEC: every key read inside fn is watched, and the
// staged writes are only applied if none of them changed in between.
package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/elimu/storage/kv"
)

type (
	Options struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	Store struct {
		rdb    redis.UniversalClient
		prefix string
	}

	getter interface {
		Get(ctx context.Context, key string) *redis.StringCmd
	}

	reader struct {
		ctx    context.Context
		cmd    getter
		prefix string
	}

	txn struct {
		reader
		tx      *redis.Tx
		staged  map[string][]byte
		deleted map[string]bool
	}
)

var _ kv.Store = (*Store)(nil)

// Open connects to redis and checks the connection.
func Open(opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return New(rdb, opts.Prefix), nil
}

// New wraps an existing client.
func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) View(ctx context.Context, fn func(r kv.Reader) error) error {
	return fn(reader{ctx: ctx, cmd: s.rdb, prefix: s.prefix})
}

func (s *Store) Update(ctx context.Context, fn func(t kv.Txn) error) error {
	client, ok := s.rdb.(*redis.Client)
	if !ok {
		return errors.New("redis transactions need a single-node client")
	}

	err := client.Watch(ctx, func(tx *redis.Tx) error {
		t := &txn{
			reader:  reader{ctx: ctx, cmd: tx, prefix: s.prefix},
			tx:      tx,
			staged:  make(map[string][]byte),
			deleted: make(map[string]bool),
		}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.staged) == 0 && len(t.deleted) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key := range t.deleted {
				pipe.Del(ctx, s.prefix+key)
			}
			for key, val := range t.staged {
				pipe.Set(ctx, s.prefix+key, val, 0)
			}
			return nil
		})
		return err
	})
	if errors.Cause(err) == redis.TxFailedErr {
		return kv.ErrConflict
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (r reader) Get(key string) ([]byte, error) {
	val, err := r.cmd.Get(r.ctx, r.prefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, kv.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (t *txn) Get(key string) ([]byte, error) {
	if t.deleted[key] {
		return nil, kv.ErrNotFound
	}
	if val, ok := t.staged[key]; ok {
		c := make([]byte, len(val))
		copy(c, val)
		return c, nil
	}
	if err := t.tx.Watch(t.ctx, t.prefix+key).Err(); err != nil {
		return nil, errors.Wrap(err, "watching key")
	}
	return t.reader.Get(key)
}

func (t *txn) Set(key string, value []byte) error {
	delete(t.deleted, key)
	c := make([]byte, len(value))
	copy(c, value)
	t.staged[key] = c
	return nil
}

func (t *txn) Delete(key string) error {
	delete(t.staged, key)
	t.deleted[key] = true
	return nil
}
