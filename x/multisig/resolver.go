package multisig

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
)

// DefaultCacheSize is the number of identities a Resolver keeps in memory.
const DefaultCacheSize = 1024

// Resolver finds the identity behind a multisig address. The chain is asked
// first because it knows every multisig that ever signed a transaction. The
// store is the fallback for accounts the chain has not seen yet.
//
// Identities are immutable, so resolved ones are cached.
type Resolver struct {
	db     cosign.DB
	node   cosign.Node
	bucket IdentityBucket
	cache  *lru.Cache
}

// NewResolver returns a resolver. Node may be nil, in which case only the
// store is consulted.
func NewResolver(db cosign.DB, node cosign.Node, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrHuman, err.Error())
	}
	return &Resolver{
		db:     db,
		node:   node,
		bucket: NewIdentityBucket(),
		cache:  cache,
	}, nil
}

// Resolve returns the identity of given address on given chain, or
// ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, chainID, address string) (*Identity, error) {
	key := string(identityKey(chainID, address))
	if v, ok := r.cache.Get(key); ok {
		return v.(*Identity), nil
	}

	identity, err := r.fromChain(ctx, chainID, address)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		err := r.db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
			var err error
			identity, err = r.bucket.Get(kv, chainID, address)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	r.cache.Add(key, identity)
	return identity, nil
}

// fromChain returns nil without an error when the chain cannot tell.
// Identities learned from the chain are stored, so that transactions can be
// proposed for them.
func (r *Resolver) fromChain(ctx context.Context, chainID, address string) (*Identity, error) {
	if r.node == nil {
		return nil, nil
	}
	log := cosign.GetLogger(ctx).With("address", address)

	acc, err := r.node.Account(ctx, address)
	switch {
	case errors.ErrNotFound.Is(err), errors.ErrNodeUnavailable.Is(err):
		log.Debug("chain account lookup", "err", err)
		return nil, nil
	case err != nil:
		return nil, err
	case !acc.IsMultisig():
		return nil, nil
	}

	prefix, _, err := cosign.ParseBech32(address)
	if err != nil {
		return nil, errors.Wrap(errors.ErrValidation, err.Error())
	}
	_, derived, err := Derive(acc.PubKeys, int(acc.Threshold), prefix)
	if err != nil {
		log.Error("chain multisig key", "err", err)
		return nil, nil
	}
	if derived != address {
		log.Error("chain multisig key does not match address", "derived", derived)
		return nil, nil
	}

	identity := &Identity{
		ChainID:       chainID,
		AddressPrefix: prefix,
		PubKeys:       acc.PubKeys,
		Threshold:     acc.Threshold,
		Address:       address,
		CreatedAt:     cosign.Now(),
	}
	var stored *Identity
	err = r.db.Update(ctx, func(kv cosign.KVStore) error {
		var err error
		stored, err = r.bucket.Save(kv, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
