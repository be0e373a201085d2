package multisig

import (
	"context"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
)

// CreateRequest describes a new multisig identity.
type CreateRequest struct {
	ChainID       string
	AddressPrefix string
	PubKeys       [][]byte
	Threshold     int
	// SortKeys orders the keys by member address before deriving the
	// identity.
	SortKeys bool
}

// Create derives an identity and persists it. Creating the same identity
// twice returns the stored one.
func Create(ctx context.Context, db cosign.DB, req CreateRequest) (*Identity, error) {
	if !cosign.IsValidChainID(req.ChainID) {
		return nil, errors.Field("ChainID", errors.ErrValidation, "invalid chain id %q", req.ChainID)
	}
	pubkeys := req.PubKeys
	if req.SortKeys {
		sorted, err := SortPubKeys(pubkeys)
		if err != nil {
			return nil, err
		}
		pubkeys = sorted
	}
	key, address, err := Derive(pubkeys, req.Threshold, req.AddressPrefix)
	if err != nil {
		return nil, err
	}
	identity := &Identity{
		ChainID:       req.ChainID,
		AddressPrefix: req.AddressPrefix,
		PubKeys:       key.PubKeys,
		Threshold:     key.Threshold,
		Address:       address,
		CreatedAt:     cosign.Now(),
	}

	bucket := NewIdentityBucket()
	var stored *Identity
	err = db.Update(ctx, func(kv cosign.KVStore) error {
		var err error
		stored, err = bucket.Save(kv, identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	cosign.GetLogger(ctx).Info("multisig identity",
		"chain", stored.ChainID,
		"address", stored.Address,
		"threshold", stored.Threshold,
		"members", len(stored.PubKeys))
	return stored, nil
}
