package orm

import (
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/store"
)

// Indexer computes the secondary index key for given model. Returning a nil
// key leaves the model out of the index.
type Indexer func(Model) ([]byte, error)

// Index maps secondary keys onto primary keys. A single secondary key can
// reference many entities. References are stored as
//
//	_i.<name>:<index key>/<primary key>
//
// with an empty value, so that a lookup is a prefix scan.
type Index struct {
	prefix []byte
	fn     Indexer
}

func newIndex(name string, fn Indexer) Index {
	return Index{
		prefix: []byte("_i." + name + ":"),
		fn:     fn,
	}
}

func (i Index) dbKey(indexKey, key []byte) []byte {
	out := make([]byte, 0, len(i.prefix)+len(indexKey)+1+len(key))
	out = append(out, i.prefix...)
	out = append(out, indexKey...)
	out = append(out, '/')
	return append(out, key...)
}

func (i Index) add(db cosign.KVStore, key []byte, m Model) error {
	ikey, err := i.fn(m)
	if err != nil || ikey == nil {
		return err
	}
	return db.Set(i.dbKey(ikey, key), []byte{})
}

func (i Index) remove(db cosign.KVStore, key []byte, m Model) error {
	ikey, err := i.fn(m)
	if err != nil || ikey == nil {
		return err
	}
	return db.Delete(i.dbKey(ikey, key))
}

func (i Index) keys(db cosign.ReadOnlyKVStore, indexKey []byte) ([][]byte, error) {
	start := i.dbKey(indexKey, nil)
	it, err := db.Iterator(start, store.PrefixEnd(start))
	if err != nil {
		return nil, err
	}
	items, err := store.ReadAll(it)
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key[len(start):])
	}
	return keys, nil
}
