// nolint
package store

import "github.com/iov-one/cosign"

// Move references for all storage types into this package
// for shorter names everywhere

type KVStore = cosign.KVStore
type ReadOnlyKVStore = cosign.ReadOnlyKVStore
type Iterator = cosign.Iterator
type DB = cosign.DB
