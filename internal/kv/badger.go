package kv

import (
	"context"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/hammamikhairi/basil/internal/logger"
)

// Compile-time interface check.
var _ Store = (*Badger)(nil)

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence. Used by tests.
	InMemory bool

	// Log receives badger's warnings and errors. Nil silences badger.
	Log *logger.Logger
}

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("kv: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{log: opts.Log})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, err
}

func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *Badger) List(_ context.Context, prefix string) ([]Entry, error) {
	p := []byte(prefix)
	var out []Entry
	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = p
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out = append(out, Entry{Key: string(item.KeyCopy(nil)), Value: val})
		}
		return nil
	})
	return out, err
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// badgerLogger forwards badger's warnings and errors to our logger and
// drops its info and debug chatter.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Error("badger: "+f, v...)
	}
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	if l.log != nil {
		l.log.Warn("badger: "+f, v...)
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
