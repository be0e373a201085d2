/*
Package orm provides an easy to use db wrapper

Break state space into prefixed sections called Buckets.
* Each bucket contains only one type of model.
* It has a primary key and may possess secondary indexes.
* Easy queries for one and iteration over a key prefix.

Models are serialized with go-amino, which handles plain Go structures
without code generation.
*/
package orm

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/store"
)

var (
	isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString
)

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	// Validate returns error if the model is not in a valid
	// state to save to the db (eg. field missing, out of range, ...)
	Validate() error
}

// ModelBucket stores models of a single type under a common key prefix.
type ModelBucket struct {
	name    string
	prefix  []byte
	model   reflect.Type
	indexes map[string]Index
}

// NewModelBucket returns a bucket that stores models of the same type as the
// given one. Name must be a unique, lower case string.
func NewModelBucket(name string, m Model) ModelBucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("Illegal bucket: %s", name))
	}
	return ModelBucket{
		name:   name,
		prefix: append([]byte(name), ':'),
		model:  reflect.TypeOf(m),
	}
}

// Name returns the name of this bucket.
func (b ModelBucket) Name() string {
	return b.name
}

// DBKey is the full key we store in the db, including prefix
// We copy into a new array rather than use append, as we don't
// want consecutive calls to overwrite the same byte array.
func (b ModelBucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// One query the database for a single model instance. Lookup is done by the
// primary key. Result is loaded into given destination model.
// This method returns ErrNotFound if the entity does not exist in the
// database.
// If given model type cannot be used to contain stored entity, ErrType is
// returned.
func (b ModelBucket) One(db cosign.ReadOnlyKVStore, key []byte, dest Model) error {
	if reflect.TypeOf(dest) != b.model {
		return errors.Wrapf(errors.ErrType, "%T cannot be represented as %s", dest, b.model)
	}
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	return Unmarshal(raw, dest)
}

// Has returns true if an entity with given key exists.
func (b ModelBucket) Has(db cosign.ReadOnlyKVStore, key []byte) (bool, error) {
	return db.Has(b.DBKey(key))
}

// Put validates and saves given model in the database. All indexes are
// updated in the same store transaction.
func (b ModelBucket) Put(db cosign.KVStore, key []byte, m Model) error {
	if reflect.TypeOf(m) != b.model {
		return errors.Wrapf(errors.ErrType, "%T cannot be stored in %s", m, b.name)
	}
	if len(key) == 0 {
		return errors.Wrap(errors.ErrEmpty, "key")
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	raw, err := Marshal(m)
	if err != nil {
		return err
	}
	for name, idx := range b.indexes {
		if err := idx.add(db, key, m); err != nil {
			return errors.Wrapf(err, "index %s", name)
		}
	}
	if err := db.Set(b.DBKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

// Delete removes an entity with given primary key from the database.
// It returns ErrNotFound if an entity with given key does not exist.
func (b ModelBucket) Delete(db cosign.KVStore, key []byte) error {
	dest := reflect.New(b.model.Elem()).Interface().(Model)
	if err := b.One(db, key, dest); err != nil {
		return err
	}
	for name, idx := range b.indexes {
		if err := idx.remove(db, key, dest); err != nil {
			return errors.Wrapf(err, "index %s", name)
		}
	}
	return db.Delete(b.DBKey(key))
}

// PrefixScan calls fn for every entity whose primary key starts with given
// prefix, in key order. A fresh model instance is passed on every call.
func (b ModelBucket) PrefixScan(db cosign.ReadOnlyKVStore, prefix []byte, fn func(key []byte, m Model) error) error {
	start := b.DBKey(prefix)
	it, err := db.Iterator(start, store.PrefixEnd(start))
	if err != nil {
		return err
	}
	items, err := store.ReadAll(it)
	if err != nil {
		return err
	}
	for _, item := range items {
		dest := reflect.New(b.model.Elem()).Interface().(Model)
		if err := Unmarshal(item.Value, dest); err != nil {
			return err
		}
		if err := fn(item.Key[len(b.prefix):], dest); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of entities whose primary key starts with given
// prefix.
func (b ModelBucket) Count(db cosign.ReadOnlyKVStore, prefix []byte) (int, error) {
	start := b.DBKey(prefix)
	it, err := db.Iterator(start, store.PrefixEnd(start))
	if err != nil {
		return 0, err
	}
	items, err := store.ReadAll(it)
	return len(items), err
}

// WithIndex returns a copy of this bucket with given index, panics if an
// index with that name is already registered.
//
// Designed to be chained.
func (b ModelBucket) WithIndex(name string, fn Indexer) ModelBucket {
	if _, ok := b.indexes[name]; ok {
		panic(fmt.Sprintf("Index %s registered twice", name))
	}
	indexes := make(map[string]Index, len(b.indexes)+1)
	for n, i := range b.indexes {
		indexes[n] = i
	}
	indexes[name] = newIndex(b.name+"_"+name, fn)
	b.indexes = indexes
	return b
}

// ByIndex returns primary keys of all entities that the named index maps to
// given index key, in primary key order.
func (b ModelBucket) ByIndex(db cosign.ReadOnlyKVStore, name string, indexKey []byte) ([][]byte, error) {
	idx, ok := b.indexes[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrHuman, "unknown index %q", name)
	}
	return idx.keys(db, indexKey)
}
