/*
Package cosmostx encodes multisigned transactions the way Cosmos SDK chains
expect them on the wire.

Only the few protobuf messages needed to carry a multisig signature are
encoded. Field numbers follow cosmos.tx.v1beta1 and cosmos.crypto. Zero
values are omitted, as proto3 does, so that the output is byte for byte
what other Cosmos clients produce.
*/
package cosmostx

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/errors"
	"github.com/tendermint/tendermint/crypto/multisig"
)

const (
	// TypeURLMultisigPubKey is the type of a LegacyAminoPubKey packed in
	// an Any.
	TypeURLMultisigPubKey = "/cosmos.crypto.multisig.LegacyAminoPubKey"
	// TypeURLSecp256k1PubKey is the type of a member key packed in an Any.
	TypeURLSecp256k1PubKey = "/cosmos.crypto.secp256k1.PubKey"

	// SignModeLegacyAminoJSON is the sign mode of every member signature.
	SignModeLegacyAminoJSON = 127
)

const (
	wireVarint = 0
	wireBytes  = 2
)

// Multisigned is everything needed to build the final transaction of a
// multisig account.
type Multisigned struct {
	// PubKeys and Threshold describe the multisig, in member order.
	PubKeys   [][]byte
	Threshold uint32
	// Sequence is the account sequence the transaction was signed with.
	Sequence  uint64
	FeeAmount coin.Coins
	GasLimit  uint64
	// BodyBytes are the bytes every selected member signed.
	BodyBytes []byte
	// Signatures maps member index to that member's signature.
	Signatures map[int][]byte
}

// MakeMultisignedTx returns the TxRaw encoding of a multisigned
// transaction. Signatures are ordered by member index and flagged in the
// signer bit array.
func MakeMultisignedTx(m Multisigned) ([]byte, error) {
	if len(m.BodyBytes) == 0 {
		return nil, errors.Wrap(errors.ErrEmpty, "body bytes")
	}
	if len(m.Signatures) == 0 {
		return nil, errors.Wrap(errors.ErrEmpty, "signatures")
	}
	n := len(m.PubKeys)
	msig := multisig.NewMultisig(n)
	for idx, sig := range m.Signatures {
		if idx < 0 || idx >= n {
			return nil, errors.Wrapf(errors.ErrInput, "signature of member %d, have %d members", idx, n)
		}
		if len(sig) == 0 {
			return nil, errors.Wrapf(errors.ErrEmpty, "signature of member %d", idx)
		}
		msig.AddSignature(sig, idx)
	}

	authInfo, err := encodeAuthInfo(m, msig)
	if err != nil {
		return nil, err
	}

	raw := proto.NewBuffer(nil)
	bytesField(raw, 1, m.BodyBytes)
	bytesField(raw, 2, authInfo)
	bytesField(raw, 3, encodeMultiSignature(msig.Sigs))
	return raw.Bytes(), nil
}

// EncodeMultisigPubKey returns the protobuf LegacyAminoPubKey of a multisig.
func EncodeMultisigPubKey(pubkeys [][]byte, threshold uint32) []byte {
	b := proto.NewBuffer(nil)
	varintField(b, 1, uint64(threshold))
	for _, pk := range pubkeys {
		key := proto.NewBuffer(nil)
		bytesField(key, 1, pk)
		bytesField(b, 2, encodeAny(TypeURLSecp256k1PubKey, key.Bytes()))
	}
	return b.Bytes()
}

func encodeAuthInfo(m Multisigned, msig *multisig.Multisignature) ([]byte, error) {
	signer := proto.NewBuffer(nil)
	bytesField(signer, 1, encodeAny(TypeURLMultisigPubKey, EncodeMultisigPubKey(m.PubKeys, m.Threshold)))
	bytesField(signer, 2, encodeMultiModeInfo(msig))
	varintField(signer, 3, m.Sequence)

	fee := proto.NewBuffer(nil)
	for _, c := range m.FeeAmount {
		if err := c.Validate(); err != nil {
			return nil, errors.Wrap(err, "fee")
		}
		cb := proto.NewBuffer(nil)
		stringField(cb, 1, c.Denom)
		stringField(cb, 2, c.Amount)
		bytesField(fee, 1, cb.Bytes())
	}
	varintField(fee, 2, m.GasLimit)

	auth := proto.NewBuffer(nil)
	bytesField(auth, 1, signer.Bytes())
	// An empty fee is still present, the chain requires the field.
	messageField(auth, 2, fee.Bytes())
	return auth.Bytes(), nil
}

func encodeMultiModeInfo(msig *multisig.Multisignature) []byte {
	bits := proto.NewBuffer(nil)
	varintField(bits, 1, uint64(msig.BitArray.ExtraBitsStored))
	bytesField(bits, 2, msig.BitArray.Elems)

	single := proto.NewBuffer(nil)
	varintField(single, 1, SignModeLegacyAminoJSON)
	singleInfo := proto.NewBuffer(nil)
	messageField(singleInfo, 1, single.Bytes())

	multi := proto.NewBuffer(nil)
	messageField(multi, 1, bits.Bytes())
	for range msig.Sigs {
		messageField(multi, 2, singleInfo.Bytes())
	}

	info := proto.NewBuffer(nil)
	messageField(info, 2, multi.Bytes())
	return info.Bytes()
}

func encodeMultiSignature(sigs [][]byte) []byte {
	b := proto.NewBuffer(nil)
	for _, s := range sigs {
		bytesField(b, 1, s)
	}
	return b.Bytes()
}

func encodeAny(typeURL string, value []byte) []byte {
	b := proto.NewBuffer(nil)
	stringField(b, 1, typeURL)
	bytesField(b, 2, value)
	return b.Bytes()
}

func tag(b *proto.Buffer, field, wire int) {
	// EncodeVarint never fails, it only appends to the buffer.
	_ = b.EncodeVarint(uint64(field<<3 | wire))
}

func varintField(b *proto.Buffer, field int, v uint64) {
	if v == 0 {
		return
	}
	tag(b, field, wireVarint)
	_ = b.EncodeVarint(v)
}

func bytesField(b *proto.Buffer, field int, v []byte) {
	if len(v) == 0 {
		return
	}
	messageField(b, field, v)
}

// messageField writes a length delimited field even if empty. Embedded
// messages are present even when all their fields have default values.
func messageField(b *proto.Buffer, field int, v []byte) {
	tag(b, field, wireBytes)
	_ = b.EncodeRawBytes(v)
}

func stringField(b *proto.Buffer, field int, v string) {
	if v == "" {
		return
	}
	tag(b, field, wireBytes)
	_ = b.EncodeStringBytes(v)
}
