package multisig

import (
	"bytes"
	"sort"

	"github.com/btcsuite/btcd/btcec"
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/tendermint/tendermint/crypto"
	"github.com/tendermint/tendermint/crypto/multisig"
	"github.com/tendermint/tendermint/crypto/secp256k1"
)

// PubKeySize is the size of a compressed secp256k1 public key.
const PubKeySize = secp256k1.PubKeySecp256k1Size

// CompositeKey is the threshold public key of a multisig identity.
type CompositeKey struct {
	Threshold uint32
	PubKeys   [][]byte

	key crypto.PubKey
}

// Bytes returns the amino encoding of the key. This is what the address is
// computed from.
func (c *CompositeKey) Bytes() []byte {
	return c.key.Bytes()
}

// Address returns the raw 20 byte address of the key.
func (c *CompositeKey) Address() cosign.Address {
	return cosign.Address(c.key.Address())
}

// Derive computes the composite key and the bech32 address of an ordered
// set of member keys. The result depends only on the arguments.
func Derive(pubkeys [][]byte, threshold int, prefix string) (*CompositeKey, string, error) {
	if threshold < 1 || threshold > len(pubkeys) {
		return nil, "", errors.ErrInvalidThreshold.Newf("threshold %d for %d keys", threshold, len(pubkeys))
	}
	if prefix == "" {
		return nil, "", errors.Wrap(errors.ErrInvalidPublicKey, "address prefix is empty")
	}

	keys := make([]crypto.PubKey, len(pubkeys))
	copies := make([][]byte, len(pubkeys))
	seen := make(map[string]int, len(pubkeys))
	for i, raw := range pubkeys {
		pk, err := parsePubKey(raw)
		if err != nil {
			return nil, "", errors.Wrapf(err, "key %d", i)
		}
		if j, ok := seen[string(raw)]; ok {
			return nil, "", errors.ErrInvalidPublicKey.Newf("key %d is a duplicate of key %d", i, j)
		}
		seen[string(raw)] = i
		keys[i] = pk
		copies[i] = append([]byte(nil), raw...)
	}

	ck := &CompositeKey{
		Threshold: uint32(threshold),
		PubKeys:   copies,
		key:       multisig.NewPubKeyMultisigThreshold(threshold, keys),
	}
	address, err := ck.Address().Bech32(prefix)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrInvalidPublicKey, err.Error())
	}
	return ck, address, nil
}

// parsePubKey accepts only compressed keys that are points on the curve.
func parsePubKey(raw []byte) (secp256k1.PubKeySecp256k1, error) {
	var pk secp256k1.PubKeySecp256k1
	if len(raw) != PubKeySize {
		return pk, errors.ErrInvalidPublicKey.Newf("want %d bytes, got %d", PubKeySize, len(raw))
	}
	if raw[0] != 0x02 && raw[0] != 0x03 {
		return pk, errors.ErrInvalidPublicKey.Newf("not a compressed key: prefix %#x", raw[0])
	}
	if _, err := btcec.ParsePubKey(raw, btcec.S256()); err != nil {
		return pk, errors.Wrap(errors.ErrInvalidPublicKey, err.Error())
	}
	copy(pk[:], raw)
	return pk, nil
}

// MemberAddress returns the raw address of a single member key.
func MemberAddress(pubkey []byte) (cosign.Address, error) {
	pk, err := parsePubKey(pubkey)
	if err != nil {
		return nil, err
	}
	return cosign.Address(pk.Address()), nil
}

// SortPubKeys returns a copy of given keys ordered by their member address.
// Some wallets create multisig accounts with sorted keys. Sorting is only
// ever applied when an identity is created.
func SortPubKeys(pubkeys [][]byte) ([][]byte, error) {
	type member struct {
		key  []byte
		addr cosign.Address
	}
	members := make([]member, len(pubkeys))
	for i, pk := range pubkeys {
		addr, err := MemberAddress(pk)
		if err != nil {
			return nil, errors.Wrapf(err, "key %d", i)
		}
		members[i] = member{key: pk, addr: addr}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return bytes.Compare(members[i].addr, members[j].addr) < 0
	})
	sorted := make([][]byte, len(members))
	for i, m := range members {
		sorted[i] = append([]byte(nil), m.key...)
	}
	return sorted, nil
}
