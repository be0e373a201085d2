package cosigntest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/errors"
)

// Node is an in memory cosign.Node. All methods are safe for concurrent use.
//
// By default every broadcast is accepted and the returned hash is the upper
// case hex of sha256(txBytes), the way Cosmos chains compute it.
type Node struct {
	// OnBroadcast, if set, is called instead of the default acceptance.
	OnBroadcast func(ctx context.Context, txBytes []byte) (string, error)

	mu        sync.Mutex
	accounts  map[string]*cosign.Account
	balances  map[string]coin.Coin
	broadcast [][]byte
}

var _ cosign.Node = (*Node)(nil)

// NewNode returns a node that knows no accounts.
func NewNode() *Node {
	return &Node{
		accounts: make(map[string]*cosign.Account),
		balances: make(map[string]coin.Coin),
	}
}

// SetAccount registers an account.
func (n *Node) SetAccount(acc *cosign.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[acc.Address] = acc
}

// SetBalance registers a balance of an address.
func (n *Node) SetBalance(address string, c coin.Coin) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[address+"/"+c.Denom] = c
}

// Account implements cosign.Node.
func (n *Node) Account(ctx context.Context, address string) (*cosign.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, ok := n.accounts[address]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "account %s", address)
	}
	cp := *acc
	return &cp, nil
}

// Balance implements cosign.Node. Unknown balances are zero.
func (n *Node) Balance(ctx context.Context, address, denom string) (*coin.Coin, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.balances[address+"/"+denom]
	if !ok {
		c = coin.NewCoin(0, denom)
	}
	return &c, nil
}

// BroadcastTx implements cosign.Node.
func (n *Node) BroadcastTx(ctx context.Context, txBytes []byte) (string, error) {
	if n.OnBroadcast != nil {
		hash, err := n.OnBroadcast(ctx, txBytes)
		if err != nil {
			return "", err
		}
		n.record(txBytes)
		return hash, nil
	}
	n.record(txBytes)
	return TxHash(txBytes), nil
}

func (n *Node) record(txBytes []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, append([]byte(nil), txBytes...))
}

// Broadcasts returns all transactions accepted so far.
func (n *Node) Broadcasts() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.broadcast...)
}

// TxHash returns the hash a chain reports for given transaction bytes.
func TxHash(txBytes []byte) string {
	h := sha256.Sum256(txBytes)
	return strings.ToUpper(hex.EncodeToString(h[:]))
}
