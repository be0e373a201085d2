package store

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/avast/retry-go"
	"github.com/dgraph-io/badger/v4"
	"github.com/iov-one/cosign/errors"
)

const (
	conflictRetries   = 50
	conflictDelay     = 2 * time.Millisecond
	conflictMaxDelay  = 50 * time.Millisecond
	conflictMaxJitter = 5 * time.Millisecond
)

// BadgerDB is a DB backed by badger. Badger transactions are serializable
// snapshot isolated: a transaction that read a key another transaction
// committed in the meantime fails with badger.ErrConflict. Such
// transactions are retried with a fresh snapshot.
type BadgerDB struct {
	db *badger.DB
}

var _ DB = (*BadgerDB)(nil)

// OpenBadger opens (or creates) a badger database in given directory. An
// empty directory opens an in-memory database.
func OpenBadger(dir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return &BadgerDB{db: db}, nil
}

// View implements DB.
func (b *BadgerDB) View(ctx context.Context, fn func(ReadOnlyKVStore) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(badgerTxn{txn: txn})
	})
}

// Update implements DB.
func (b *BadgerDB) Update(ctx context.Context, fn func(KVStore) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	err := retry.Do(
		func() error {
			if err := ctx.Err(); err != nil {
				return retry.Unrecoverable(errors.Wrap(errors.ErrTimeout, err.Error()))
			}
			return b.db.Update(func(txn *badger.Txn) error {
				return fn(badgerTxn{txn: txn})
			})
		},
		retry.Attempts(conflictRetries),
		retry.Delay(conflictDelay),
		retry.MaxDelay(conflictMaxDelay),
		retry.MaxJitter(conflictMaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool {
			return err == badger.ErrConflict
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	switch {
	case err == badger.ErrConflict:
		return errors.Wrap(errors.ErrDatabase, "too many conflicting writers")
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	return err
}

// Close implements DB.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// badgerTxn adapts a badger transaction to the KVStore interface.
type badgerTxn struct {
	txn *badger.Txn
}

var _ KVStore = badgerTxn{}

func (t badgerTxn) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrHuman, "nil key")
	}
	item, err := t.txn.Get(key)
	switch {
	case err == badger.ErrKeyNotFound:
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return val, nil
}

func (t badgerTxn) Has(key []byte) (bool, error) {
	v, err := t.Get(key)
	return v != nil, err
}

func (t badgerTxn) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrHuman, "nil key")
	}
	if value == nil {
		return errors.Wrap(errors.ErrHuman, "nil value")
	}
	// Badger keeps references to the given slices until commit.
	if err := t.txn.Set(copyBytes(key), copyBytes(value)); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

func (t badgerTxn) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrHuman, "nil key")
	}
	if err := t.txn.Delete(copyBytes(key)); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// Iterator reads the whole range eagerly. Iterated keys are part of the
// transaction read set, so a concurrent write to any of them causes a
// conflict on commit.
func (t badgerTxn) Iterator(start, end []byte) (Iterator, error) {
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var res []Model
	if start == nil {
		it.Rewind()
	} else {
		it.Seek(start)
	}
	for ; it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if !inRange(key, start, end) {
			break
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, err.Error())
		}
		res = append(res, Model{Key: key, Value: val})
	}
	return newSliceIterator(res), nil
}
