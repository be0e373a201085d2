package multisig

import (
	"bytes"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/orm"
)

// BucketName is where we store the identities.
const BucketName = "identity"

// Identity is an M-of-N multisig account of a single chain.
type Identity struct {
	ChainID       string          `json:"chain_id"`
	AddressPrefix string          `json:"address_prefix"`
	PubKeys       [][]byte        `json:"pubkeys"`
	Threshold     uint32          `json:"threshold"`
	Address       string          `json:"address"`
	CreatedAt     cosign.UnixTime `json:"created_at"`
}

var _ orm.Model = (*Identity)(nil)

// Validate ensures the identity is consistent. The address must be the one
// derived from the keys, threshold and prefix.
func (i *Identity) Validate() error {
	var errs error
	if !cosign.IsValidChainID(i.ChainID) {
		errs = errors.AppendField(errs, "ChainID", errors.ErrInput)
	}
	if i.CreatedAt.IsZero() {
		errs = errors.AppendField(errs, "CreatedAt", errors.ErrEmpty)
	}
	if errs != nil {
		return errs
	}
	_, address, err := Derive(i.PubKeys, int(i.Threshold), i.AddressPrefix)
	if err != nil {
		return err
	}
	if address != i.Address {
		return errors.Field("Address", errors.ErrModel, "want %s", address)
	}
	return nil
}

// Key returns the primary key of the identity.
func (i *Identity) Key() []byte {
	return identityKey(i.ChainID, i.Address)
}

func identityKey(chainID, address string) []byte {
	return []byte(chainID + "/" + address)
}

// MemberAddresses returns bech32 addresses of all members, in member order.
func (i *Identity) MemberAddresses() ([]string, error) {
	addrs := make([]string, len(i.PubKeys))
	for n, pk := range i.PubKeys {
		raw, err := MemberAddress(pk)
		if err != nil {
			return nil, errors.Wrapf(err, "member %d", n)
		}
		if addrs[n], err = raw.Bech32(i.AddressPrefix); err != nil {
			return nil, err
		}
	}
	return addrs, nil
}

// MemberIndex returns the position of the member with given bech32 address.
// A malformed address gives ErrInput, an address of another account gives
// ErrUnknownSigner.
func (i *Identity) MemberIndex(signerAddress string) (int, error) {
	prefix, raw, err := cosign.ParseBech32(signerAddress)
	if err != nil {
		return -1, err
	}
	if prefix != i.AddressPrefix {
		return -1, errors.ErrUnknownSigner.Newf("address prefix %q, want %q", prefix, i.AddressPrefix)
	}
	for n, pk := range i.PubKeys {
		addr, err := MemberAddress(pk)
		if err != nil {
			return -1, err
		}
		if addr.Equals(raw) {
			return n, nil
		}
	}
	return -1, errors.ErrUnknownSigner.Newf("%s is not a member of %s", signerAddress, i.Address)
}

// sameContent ignores the creation time.
func (i *Identity) sameContent(o *Identity) bool {
	if i.ChainID != o.ChainID || i.AddressPrefix != o.AddressPrefix ||
		i.Threshold != o.Threshold || i.Address != o.Address ||
		len(i.PubKeys) != len(o.PubKeys) {
		return false
	}
	for n := range i.PubKeys {
		if !bytes.Equal(i.PubKeys[n], o.PubKeys[n]) {
			return false
		}
	}
	return true
}

// IdentityBucket is a type-safe wrapper around orm.ModelBucket
type IdentityBucket struct {
	orm.ModelBucket
}

// NewIdentityBucket initializes an IdentityBucket with default name.
func NewIdentityBucket() IdentityBucket {
	return IdentityBucket{
		ModelBucket: orm.NewModelBucket(BucketName, &Identity{}),
	}
}

// Get returns the identity stored for given chain and address.
func (b IdentityBucket) Get(db cosign.ReadOnlyKVStore, chainID, address string) (*Identity, error) {
	var i Identity
	if err := b.One(db, identityKey(chainID, address), &i); err != nil {
		return nil, errors.Wrapf(err, "identity %s on %s", address, chainID)
	}
	return &i, nil
}

// Save stores an identity. Identities are immutable: saving the same
// identity again is a no-op that returns the stored version, saving a
// different one under an existing key fails with ErrDuplicate.
func (b IdentityBucket) Save(db cosign.KVStore, i *Identity) (*Identity, error) {
	switch existing, err := b.Get(db, i.ChainID, i.Address); {
	case err == nil:
		if !existing.sameContent(i) {
			return nil, errors.Wrapf(errors.ErrDuplicate, "identity %s on %s", i.Address, i.ChainID)
		}
		return existing, nil
	case !errors.ErrNotFound.Is(err):
		return nil, err
	}
	if err := b.Put(db, i.Key(), i); err != nil {
		return nil, err
	}
	return i, nil
}
