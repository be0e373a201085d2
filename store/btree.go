package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/iov-one/cosign/errors"
)

const (
	// DefaultFreeListSize is the size we hold for free node in btree
	DefaultFreeListSize = btree.DefaultFreeListSize

	degree = 2
)

// MemDB is a DB that keeps all data in a btree. It is shared by all
// goroutines of a single process and serves tests, development setups and
// single instance deployments. Writers are fully serialized.
type MemDB struct {
	mu   sync.RWMutex
	tree *btree.BTree
	free *btree.FreeList
}

var _ DB = (*MemDB)(nil)

// MemStore returns a new, empty in-memory database.
func MemStore() *MemDB {
	free := btree.NewFreeList(DefaultFreeListSize)
	return &MemDB{
		tree: btree.NewWithFreeList(degree, free),
		free: free,
	}
}

// View implements DB.
func (m *MemDB) View(ctx context.Context, fn func(ReadOnlyKVStore) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(treeReader{tree: m.tree})
}

// Update implements DB. All writes of fn are buffered in a cache wrap and
// written to the tree only when fn succeeds.
func (m *MemDB) Update(ctx context.Context, fn func(KVStore) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrTimeout, err.Error())
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cache := newBTreeCacheWrap(treeReader{tree: m.tree}, m.free)
	defer cache.discard()
	if err := fn(cache); err != nil {
		return err
	}
	cache.writeTo(m.tree)
	return nil
}

// Close implements DB.
func (m *MemDB) Close() error {
	return nil
}

// treeReader is a read only view of a committed btree.
type treeReader struct {
	tree *btree.BTree
}

func (r treeReader) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrHuman, "nil key")
	}
	res := r.tree.Get(bkey{key})
	if res == nil {
		return nil, nil
	}
	return copyBytes(res.(setItem).value), nil
}

func (r treeReader) Has(key []byte) (bool, error) {
	if key == nil {
		return false, errors.Wrap(errors.ErrHuman, "nil key")
	}
	return r.tree.Has(bkey{key}), nil
}

func (r treeReader) Iterator(start, end []byte) (Iterator, error) {
	return newSliceIterator(ascend(r.tree, start, end)), nil
}

// ascend collects all items in [start, end) of given tree.
func ascend(tree *btree.BTree, start, end []byte) []Model {
	var res []Model
	collect := func(i btree.Item) bool {
		s, ok := i.(setItem)
		if !ok {
			return true
		}
		if !inRange(s.key, start, end) {
			return false
		}
		res = append(res, Model{Key: copyBytes(s.key), Value: copyBytes(s.value)})
		return true
	}
	if start == nil {
		tree.Ascend(collect)
	} else {
		tree.AscendGreaterOrEqual(bkey{start}, collect)
	}
	return res
}

///////////////////////////////////////////////
// Actual CacheWrap implementation

// btreeCacheWrap places a btree cache over a read only store. Every write is
// kept in the cache until writeTo is called.
type btreeCacheWrap struct {
	bt   *btree.BTree
	back ReadOnlyKVStore
}

var _ KVStore = btreeCacheWrap{}

func newBTreeCacheWrap(back ReadOnlyKVStore, free *btree.FreeList) btreeCacheWrap {
	return btreeCacheWrap{
		bt:   btree.NewWithFreeList(degree, free),
		back: back,
	}
}

// Set writes to the BTree
func (b btreeCacheWrap) Set(key, value []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrHuman, "nil key")
	}
	if value == nil {
		return errors.Wrap(errors.ErrHuman, "nil value")
	}
	b.bt.ReplaceOrInsert(newSetItem(copyBytes(key), copyBytes(value)))
	return nil
}

// Delete marks the key as deleted in the BTree
func (b btreeCacheWrap) Delete(key []byte) error {
	if key == nil {
		return errors.Wrap(errors.ErrHuman, "nil key")
	}
	b.bt.ReplaceOrInsert(newDeletedItem(copyBytes(key)))
	return nil
}

// Get reads from btree if there, else backing store
func (b btreeCacheWrap) Get(key []byte) ([]byte, error) {
	if key == nil {
		return nil, errors.Wrap(errors.ErrHuman, "nil key")
	}
	res := b.bt.Get(bkey{key})
	if res != nil {
		switch t := res.(type) {
		case setItem:
			return copyBytes(t.value), nil
		case deletedItem:
			return nil, nil
		default:
			return nil, errors.Wrapf(errors.ErrDatabase, "Unknown item in btree: %#v", res)
		}
	}
	return b.back.Get(key)
}

// Has reads from btree if there, else backing store
func (b btreeCacheWrap) Has(key []byte) (bool, error) {
	v, err := b.Get(key)
	return v != nil, err
}

// Iterator over a domain of keys in ascending order.
// Combines results from btree and backing store
func (b btreeCacheWrap) Iterator(start, end []byte) (Iterator, error) {
	parent, err := b.back.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	base, err := ReadAll(parent)
	if err != nil {
		return nil, err
	}

	var (
		res     []Model
		pending []btree.Item
	)
	collect := func(i btree.Item) bool {
		if !inRange(i.(keyer).Key(), start, end) {
			return false
		}
		pending = append(pending, i)
		return true
	}
	if start == nil {
		b.bt.Ascend(collect)
	} else {
		b.bt.AscendGreaterOrEqual(bkey{start}, collect)
	}

	// Merge two sorted lists, cached items shadow the backing store.
	for len(base) > 0 || len(pending) > 0 {
		switch {
		case len(pending) == 0:
			res = append(res, base...)
			base = nil
		case len(base) == 0 || bytes.Compare(pending[0].(keyer).Key(), base[0].Key) <= 0:
			item := pending[0]
			pending = pending[1:]
			if len(base) > 0 && bytes.Equal(item.(keyer).Key(), base[0].Key) {
				base = base[1:]
			}
			if s, ok := item.(setItem); ok {
				res = append(res, Model{Key: copyBytes(s.key), Value: copyBytes(s.value)})
			}
		default:
			res = append(res, base[0])
			base = base[1:]
		}
	}
	return newSliceIterator(res), nil
}

// writeTo applies all cached changes to the committed tree.
func (b btreeCacheWrap) writeTo(tree *btree.BTree) {
	b.bt.Ascend(func(i btree.Item) bool {
		switch t := i.(type) {
		case setItem:
			tree.ReplaceOrInsert(t)
		case deletedItem:
			tree.Delete(bkey{t.key})
		}
		return true
	})
}

// discard releases all cached nodes back to the free list.
func (b btreeCacheWrap) discard() {
	for b.bt.DeleteMin() != nil {
	}
}

/////////////////////////////////////////////////////////
// Items to write to btree

// we enforce all data in our btree implements keyer so we
// can compare nicely
type keyer interface {
	Key() []byte
}

// bkey implements keyer and btree.Item
// and may be used for queries or embedded in data to store
type bkey struct {
	key []byte
}

var _ keyer = bkey{}
var _ btree.Item = bkey{}

func (k bkey) Key() []byte {
	return k.key
}

// Less returns true iff second argument is greater than first
//
// panics if the item to compare doesn't implement keyer.
func (k bkey) Less(item btree.Item) bool {
	cmp := item.(keyer).Key()
	return bytes.Compare(k.key, cmp) < 0
}

type deletedItem struct {
	bkey
}

func newDeletedItem(key []byte) deletedItem {
	return deletedItem{bkey{key}}
}

type setItem struct {
	bkey
	value []byte
}

func newSetItem(key, value []byte) setItem {
	return setItem{bkey{key}, value}
}
