package cosmostx

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/cosigntest"
	"github.com/iov-one/cosign/cosigntest/assert"
	"github.com/iov-one/cosign/errors"
	"github.com/stretchr/testify/require"
)

func testTx() Multisigned {
	return Multisigned{
		PubKeys: [][]byte{
			cosigntest.KeyFromScalar(1).PubKey(),
			cosigntest.KeyFromScalar(2).PubKey(),
			cosigntest.KeyFromScalar(3).PubKey(),
		},
		Threshold: 2,
		Sequence:  4,
		FeeAmount: coin.Coins{coin.NewCoin(2500, "uatom")},
		GasLimit:  200000,
		BodyBytes: []byte("body"),
		Signatures: map[int][]byte{
			2: bytes.Repeat([]byte{2}, 64),
			0: bytes.Repeat([]byte{1}, 64),
		},
	}
}

func TestMakeMultisignedTxKnownEncoding(t *testing.T) {
	want, err := hex.DecodeString("0a04626f647912bc020aa4020a88020a292f636f736d6f732e63727970746f2e6d756c74697369672e4c6567616379416d696e6f5075624b657912da01080212460a1f2f636f736d6f732e63727970746f2e736563703235366b312e5075624b657912230a210279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f8179812460a1f2f636f736d6f732e63727970746f2e736563703235366b312e5075624b657912230a2102c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee512460a1f2f636f736d6f732e63727970746f2e736563703235366b312e5075624b657912230a2102f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9121512130a0508031201a012040a02087f12040a02087f180412130a0d0a057561746f6d12043235303010c09a0c1a84010a40010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010101010a4002020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202020202")
	require.NoError(t, err)

	got, err := MakeMultisignedTx(testTx())
	assert.Nil(t, err)
	assert.Equal(t, want, got)
}

func TestMakeMultisignedTxIsDeterministic(t *testing.T) {
	first, err := MakeMultisignedTx(testTx())
	assert.Nil(t, err)
	for i := 0; i < 10; i++ {
		again, err := MakeMultisignedTx(testTx())
		assert.Nil(t, err)
		assert.Equal(t, first, again)
	}
}

// fields decodes a single level of a protobuf message. Length delimited
// values are returned as bytes, varints as their value.
func fields(t testing.TB, raw []byte) map[uint64][]interface{} {
	t.Helper()
	res := make(map[uint64][]interface{})
	for len(raw) > 0 {
		key, n := proto.DecodeVarint(raw)
		require.NotZero(t, n, "malformed key")
		raw = raw[n:]
		switch key & 7 {
		case wireVarint:
			v, n := proto.DecodeVarint(raw)
			require.NotZero(t, n, "malformed varint")
			raw = raw[n:]
			res[key>>3] = append(res[key>>3], v)
		case wireBytes:
			l, n := proto.DecodeVarint(raw)
			require.NotZero(t, n, "malformed length")
			raw = raw[n:]
			require.True(t, uint64(len(raw)) >= l, "truncated field")
			res[key>>3] = append(res[key>>3], raw[:l])
			raw = raw[l:]
		default:
			t.Fatalf("unexpected wire type %d", key&7)
		}
	}
	return res
}

func TestMakeMultisignedTxStructure(t *testing.T) {
	tx := testTx()
	tx.Signatures = map[int][]byte{1: []byte("only")}
	tx.Threshold = 1
	tx.Sequence = 0
	tx.FeeAmount = nil

	raw, err := MakeMultisignedTx(tx)
	assert.Nil(t, err)

	top := fields(t, raw)
	assert.Equal(t, []byte("body"), top[1][0])

	msig := fields(t, top[3][0].([]byte))
	assert.Equal(t, []interface{}{[]byte("only")}, msig[1])

	auth := fields(t, top[2][0].([]byte))
	require.Len(t, auth[2], 1, "fee must be present")
	fee := fields(t, auth[2][0].([]byte))
	assert.Equal(t, []interface{}{uint64(200000)}, fee[2])

	signer := fields(t, auth[1][0].([]byte))
	_, hasSequence := signer[3]
	assert.Equal(t, false, hasSequence)

	pubkey := fields(t, signer[1][0].([]byte))
	assert.Equal(t, []byte(TypeURLMultisigPubKey), pubkey[1][0])
	assert.Equal(t, EncodeMultisigPubKey(tx.PubKeys, 1), pubkey[2][0])

	modeInfo := fields(t, signer[2][0].([]byte))
	multi := fields(t, modeInfo[2][0].([]byte))
	bits := fields(t, multi[1][0].([]byte))
	assert.Equal(t, []interface{}{uint64(3)}, bits[1])
	assert.Equal(t, []interface{}{[]byte{0x40}}, bits[2])
	require.Len(t, multi[2], 1)
}

func TestMakeMultisignedTxErrors(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Multisigned)
		wantErr *errors.Error
	}{
		"no body":          {mutate: func(m *Multisigned) { m.BodyBytes = nil }, wantErr: errors.ErrEmpty},
		"no signatures":    {mutate: func(m *Multisigned) { m.Signatures = nil }, wantErr: errors.ErrEmpty},
		"empty signature":  {mutate: func(m *Multisigned) { m.Signatures[1] = nil }, wantErr: errors.ErrEmpty},
		"unknown member":   {mutate: func(m *Multisigned) { m.Signatures[3] = []byte{1} }, wantErr: errors.ErrInput},
		"negative member":  {mutate: func(m *Multisigned) { m.Signatures[-1] = []byte{1} }, wantErr: errors.ErrInput},
		"invalid fee coin": {mutate: func(m *Multisigned) { m.FeeAmount = coin.Coins{{Denom: "x", Amount: "1"}} }, wantErr: errors.ErrInput},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			tx := testTx()
			tc.mutate(&tx)
			_, err := MakeMultisignedTx(tx)
			assert.IsErr(t, tc.wantErr, err)
		})
	}
}
