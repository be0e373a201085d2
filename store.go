package cosign

import "context"

//////////////////////////////////////////////////////////
// Defines all public interfaces for interacting with stores
//
// KVStore/Iterator are the basic objects to use in all code

// ReadOnlyKVStore is a simple interface to query data.
type ReadOnlyKVStore interface {
	// Get returns nil iff key doesn't exist. Panics on nil key.
	Get(key []byte) ([]byte, error)

	// Has checks if a key exists. Panics on nil key.
	Has(key []byte) (bool, error)

	// Iterator over a domain of keys in ascending order. End is exclusive.
	// Start must be less than end, or the Iterator is invalid.
	// CONTRACT: No writes may happen within a domain while an iterator exists over it.
	Iterator(start, end []byte) (Iterator, error)
}

// KVStore is a simple interface to get/set data.
//
// For simplicity, we require all backing stores to implement this
// interface. They *may* implement other methods as well, but
// at least these are required.
type KVStore interface {
	ReadOnlyKVStore

	// Set sets the key. Panics on nil key.
	Set(key, value []byte) error

	// Delete deletes the key. Panics on nil key.
	Delete(key []byte) error
}

/*
Iterator allows us to access a set of items within a range of
keys. These may all be preloaded, or loaded on demand.

	Usage:

	itr, err := kv.Iterator(start, end)
	if err != nil { ... }
	defer itr.Release()

	for {
	  key, value, err := itr.Next()
	  if errors.ErrIteratorDone.Is(err) {
	    break
	  }
	  ...
	}
*/
type Iterator interface {
	// Next moves the iterator to the next sequential key in the database, as
	// defined by order of iteration. Returns ErrIteratorDone when the
	// domain is exhausted.
	Next() (key, value []byte, err error)

	// Release releases the Iterator.
	Release()
}

// DB is the shared state of all clients. Each backend must guarantee that
// every function passed to Update observes a serializable snapshot and that
// its writes are applied atomically or not at all. Read-modify-write
// operations (compare-and-swap, upsert) are only safe inside Update.
type DB interface {
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(ReadOnlyKVStore) error) error

	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing is written. Backends may run fn more than once when a
	// concurrent writer conflicts, so fn must not have side effects other
	// than writes to the given store.
	Update(ctx context.Context, fn func(KVStore) error) error

	// Close releases all resources held by the database.
	Close() error
}
