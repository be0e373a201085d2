package cosign

import (
	"context"

	"github.com/iov-one/cosign/coin"
)

// Account is the state of an address as reported by a chain node.
type Account struct {
	Address       string
	AccountNumber int64
	Sequence      int64

	// PubKeyType is the protobuf type URL of the account public key. It is
	// empty as long as the chain has never seen a transaction signed by
	// this account.
	PubKeyType string
	// PubKey is set for single key accounts.
	PubKey []byte
	// Threshold and PubKeys are set for multisig accounts. Member order is
	// the order the chain stores.
	Threshold uint32
	PubKeys   [][]byte
}

// IsMultisig returns true if the chain knows this account as a multisig.
func (a *Account) IsMultisig() bool {
	return a != nil && a.Threshold > 0 && len(a.PubKeys) > 0
}

// Node is the chain node collaborator. Implementations must map transport
// failures onto errors.ErrNodeUnavailable and rejected transactions onto
// errors.ErrNodeRejected.
type Node interface {
	// Account returns errors.ErrNotFound if the chain has no record of the
	// address.
	Account(ctx context.Context, address string) (*Account, error)
	Balance(ctx context.Context, address, denom string) (*coin.Coin, error)
	// BroadcastTx submits raw encoded transaction bytes and returns the
	// transaction hash.
	BroadcastTx(ctx context.Context, txBytes []byte) (string, error)
}

// Signer produces a signature over given bytes. It is an opaque collaborator,
// usually a wallet. The returned public key is used to find the member that
// signed.
type Signer interface {
	Sign(ctx context.Context, chainID string, signBytes []byte) (pubKey, signature []byte, err error)
}
