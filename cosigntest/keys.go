package cosigntest

import (
	"context"
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/iov-one/cosign"
	"github.com/tendermint/tendermint/crypto/secp256k1"
)

// Key is a secp256k1 key pair used as a multisig member in tests.
type Key struct {
	priv *btcec.PrivateKey
}

// NewKey returns a random key.
func NewKey() *Key {
	priv, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		panic(err)
	}
	return &Key{priv: priv}
}

// KeyFromScalar returns the key with given private scalar. Use small scalars
// to get well known public keys, 1 is the curve generator.
func KeyFromScalar(n int64) *Key {
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), big.NewInt(n).Bytes())
	return &Key{priv: priv}
}

// NewKeys returns n random keys.
func NewKeys(n int) []*Key {
	keys := make([]*Key, n)
	for i := range keys {
		keys[i] = NewKey()
	}
	return keys
}

// PubKeys returns compressed public keys of all given keys, in order.
func PubKeys(keys ...*Key) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = k.PubKey()
	}
	return out
}

// PubKey returns the 33 byte compressed public key.
func (k *Key) PubKey() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// Address returns the bech32 account address of this key.
func (k *Key) Address(prefix string) string {
	var pk secp256k1.PubKeySecp256k1
	copy(pk[:], k.PubKey())
	addr, err := cosign.Address(pk.Address()).Bech32(prefix)
	if err != nil {
		panic(err)
	}
	return addr
}

// Sign returns a 64 byte r||s signature over the sha256 digest of msg.
func (k *Key) Sign(msg []byte) []byte {
	hash := sha256.Sum256(msg)
	sig, err := k.priv.Sign(hash[:])
	if err != nil {
		panic(err)
	}
	out := make([]byte, 64)
	r, s := sig.R.Bytes(), sig.S.Bytes()
	copy(out[32-len(r):32], r)
	copy(out[64-len(s):], s)
	return out
}

// Signer is a cosign.Signer backed by a Key. Set Err to make every call
// fail.
type Signer struct {
	Key *Key
	Err error
}

var _ cosign.Signer = (*Signer)(nil)

// Sign implements cosign.Signer.
func (s *Signer) Sign(ctx context.Context, chainID string, signBytes []byte) ([]byte, []byte, error) {
	if s.Err != nil {
		return nil, nil, s.Err
	}
	return s.Key.PubKey(), s.Key.Sign(signBytes), nil
}
