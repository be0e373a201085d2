package signing

import (
	"context"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/x/multisig"
)

// SignWith asks signer to sign the canonical body of a transaction and
// submits the result. The member is found by the public key the signer
// returns. Signer failures are returned as they are.
func (l *Ledger) SignWith(ctx context.Context, txID []byte, signer cosign.Signer) (*Status, error) {
	var (
		chainID, prefix string
		body            []byte
	)
	err := l.db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		record, err := l.records.GetRecord(kv, txID)
		if err != nil {
			return err
		}
		identity, err := l.identities.Get(kv, record.ChainID, record.MultisigAddress)
		if err != nil {
			return err
		}
		chainID, prefix, body = record.ChainID, identity.AddressPrefix, record.BodyBytes
		return nil
	})
	if err != nil {
		return nil, err
	}

	pubkey, signature, err := signer.Sign(ctx, chainID, body)
	if err != nil {
		return nil, err
	}
	raw, err := multisig.MemberAddress(pubkey)
	if err != nil {
		return nil, errors.Wrap(err, "signer public key")
	}
	address, err := raw.Bech32(prefix)
	if err != nil {
		return nil, err
	}
	return l.Submit(ctx, txID, address, signature, body)
}
