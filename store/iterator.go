package store

import (
	"bytes"

	"github.com/iov-one/cosign/errors"
)

// Model is a key/value pair as returned by an iterator.
type Model struct {
	Key   []byte
	Value []byte
}

// sliceIterator wraps an Iterator over a slice of models. Both backends
// materialize the requested range before iterating, so that callers may
// write to the store while iterating.
type sliceIterator struct {
	data []Model
	idx  int
}

var _ Iterator = (*sliceIterator)(nil)

func newSliceIterator(data []Model) *sliceIterator {
	return &sliceIterator{data: data}
}

// Next implements Iterator.
func (s *sliceIterator) Next() ([]byte, []byte, error) {
	if s.idx >= len(s.data) {
		return nil, nil, errors.ErrIteratorDone
	}
	m := s.data[s.idx]
	s.idx++
	return m.Key, m.Value, nil
}

// Release implements Iterator.
func (s *sliceIterator) Release() {
	s.data = nil
}

// inRange returns true if key is in [start, end). Nil bounds are open.
func inRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// PrefixEnd returns the first key that is greater than all keys starting
// with given prefix. It returns nil if there is no such key.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// ReadAll consumes given iterator and returns all its items.
func ReadAll(it Iterator) ([]Model, error) {
	defer it.Release()
	var res []Model
	for {
		k, v, err := it.Next()
		switch {
		case err == nil:
			res = append(res, Model{Key: k, Value: v})
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
