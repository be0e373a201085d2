package multisig

import (
	"context"
	"testing"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/cosigntest"
	"github.com/iov-one/cosign/cosigntest/assert"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/store"
)

func TestResolverStoreFallback(t *testing.T) {
	db := store.MemStore()
	ctx := context.Background()
	node := cosigntest.NewNode()

	identity, err := Create(ctx, db, CreateRequest{
		ChainID:       "cosmoshub-4",
		AddressPrefix: "cosmos",
		PubKeys:       [][]byte{keyOne, keyTwo, keyThree},
		Threshold:     2,
	})
	assert.Nil(t, err)

	r, err := NewResolver(db, node, 0)
	assert.Nil(t, err)

	got, err := r.Resolve(ctx, "cosmoshub-4", identity.Address)
	assert.Nil(t, err)
	assert.Equal(t, identity, got)

	_, err = r.Resolve(ctx, "cosmoshub-4", cosigntest.NewKey().Address("cosmos"))
	assert.IsErr(t, errors.ErrNotFound, err)
}

func TestResolverPrefersChain(t *testing.T) {
	db := store.MemStore()
	ctx := context.Background()
	node := cosigntest.NewNode()

	keys := [][]byte{keyThree, keyOne}
	_, address, err := Derive(keys, 2, "cosmos")
	assert.Nil(t, err)
	node.SetAccount(&cosign.Account{
		Address:   address,
		Threshold: 2,
		PubKeys:   keys,
	})

	r, err := NewResolver(db, node, 8)
	assert.Nil(t, err)

	got, err := r.Resolve(ctx, "cosmoshub-4", address)
	assert.Nil(t, err)
	assert.Equal(t, keys, got.PubKeys)
	assert.Equal(t, uint32(2), got.Threshold)

	// Identity learned from the chain is kept in the store.
	err = db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		_, err := NewIdentityBucket().Get(kv, "cosmoshub-4", address)
		return err
	})
	assert.Nil(t, err)
}

func TestResolverIgnoresMismatchingChainKey(t *testing.T) {
	db := store.MemStore()
	ctx := context.Background()
	node := cosigntest.NewNode()

	_, address, err := Derive([][]byte{keyOne, keyTwo}, 1, "cosmos")
	assert.Nil(t, err)
	node.SetAccount(&cosign.Account{
		Address:   address,
		Threshold: 2,
		PubKeys:   [][]byte{keyOne, keyTwo},
	})

	r, err := NewResolver(db, node, 8)
	assert.Nil(t, err)
	_, err = r.Resolve(ctx, "cosmoshub-4", address)
	assert.IsErr(t, errors.ErrNotFound, err)
}

type countingNode struct {
	*cosigntest.Node
	calls int
}

func (n *countingNode) Account(ctx context.Context, address string) (*cosign.Account, error) {
	n.calls++
	return n.Node.Account(ctx, address)
}

func TestResolverCaches(t *testing.T) {
	db := store.MemStore()
	ctx := context.Background()
	node := &countingNode{Node: cosigntest.NewNode()}

	identity, err := Create(ctx, db, CreateRequest{
		ChainID:       "cosmoshub-4",
		AddressPrefix: "cosmos",
		PubKeys:       [][]byte{keyOne, keyTwo},
		Threshold:     2,
	})
	assert.Nil(t, err)

	r, err := NewResolver(db, node, 8)
	assert.Nil(t, err)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(ctx, "cosmoshub-4", identity.Address)
		assert.Nil(t, err)
	}
	assert.Equal(t, 1, node.calls)
}
