package cosign

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/iov-one/cosign/crypto/bech32"
	"github.com/iov-one/cosign/errors"
)

// AddressLength is the length of all account addresses. Both single key and
// multisig accounts use a 20 byte digest.
const AddressLength = 20

// Address represents a collision-free, one-way digest of a public key.
//
// It will be of size AddressLength. Chains present it in its bech32 form,
// using a chain specific human readable prefix.
type Address []byte

// Equals checks if two addresses are the same
func (a Address) Equals(b Address) bool {
	return bytes.Equal(a, b)
}

// String returns a hex representation. Use Bech32 to get the form a chain
// understands.
func (a Address) String() string {
	if len(a) == 0 {
		return "(nil)"
	}
	return strings.ToUpper(hex.EncodeToString(a))
}

// Bech32 returns the address encoded with given human readable prefix.
func (a Address) Bech32(prefix string) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	raw, err := bech32.Encode(prefix, a)
	if err != nil {
		return "", errors.Wrap(errors.ErrInput, err.Error())
	}
	return string(raw), nil
}

// Validate returns an error if the address is not the valid size
func (a Address) Validate() error {
	if len(a) != AddressLength {
		return errors.Wrapf(errors.ErrInput, "address length %d", len(a))
	}
	return nil
}

// ParseBech32 decodes a bech32 account address and returns its human
// readable prefix together with the raw address.
func ParseBech32(s string) (string, Address, error) {
	if s == "" {
		return "", nil, errors.Wrap(errors.ErrEmpty, "address")
	}
	prefix, payload, err := bech32.Decode(s)
	if err != nil {
		return "", nil, errors.Wrapf(errors.ErrInput, "address %q: %s", s, err)
	}
	addr := Address(payload)
	if err := addr.Validate(); err != nil {
		return "", nil, err
	}
	return prefix, addr, nil
}
