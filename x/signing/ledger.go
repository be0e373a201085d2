package signing

import (
	"context"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/metrics"
	"github.com/iov-one/cosign/x/multisig"
	"github.com/iov-one/cosign/x/txs"
)

// Status is the state of a ledger after a submission.
type Status struct {
	Count        int        `json:"count"`
	Threshold    int        `json:"threshold"`
	ThresholdMet bool       `json:"threshold_met"`
	State        *txs.State `json:"state"`
}

// Ledger collects signatures of multisig members. Every method is a single
// store transaction, so any number of ledgers may share a DB.
type Ledger struct {
	db         cosign.DB
	records    txs.RecordBucket
	states     txs.StateBucket
	identities multisig.IdentityBucket
	entries    EntryBucket
}

// NewLedger returns a ledger backed by given DB.
func NewLedger(db cosign.DB) *Ledger {
	return &Ledger{
		db:         db,
		records:    txs.NewRecordBucket(),
		states:     txs.NewStateBucket(),
		identities: multisig.NewIdentityBucket(),
		entries:    NewEntryBucket(),
	}
}

// Submit stores the signature of a member, replacing an earlier one of the
// same member. When the number of signers reaches the threshold, the
// transaction becomes ReadyToBroadcast in the same store transaction.
//
// Signatures submitted after the transaction was broadcast are stored but
// never change its state.
func (l *Ledger) Submit(ctx context.Context, txID []byte, signerAddress string, signature, signedBodyBytes []byte) (*Status, error) {
	var errs error
	if signerAddress == "" {
		errs = errors.Append(errs, errors.Field("SignerAddress", errors.ErrValidation, "empty"))
	}
	if len(signature) == 0 {
		errs = errors.Append(errs, errors.Field("Signature", errors.ErrValidation, "empty"))
	}
	if len(signedBodyBytes) == 0 {
		errs = errors.Append(errs, errors.Field("SignedBodyBytes", errors.ErrValidation, "empty"))
	}
	if errs != nil {
		metrics.SignatureSubmitted("invalid")
		return nil, errs
	}

	var (
		status *Status
		signer string
		ready  bool
	)
	err := l.db.Update(ctx, func(kv cosign.KVStore) error {
		ready = false
		record, err := l.records.GetRecord(kv, txID)
		if err != nil {
			return err
		}
		identity, err := l.identities.Get(kv, record.ChainID, record.MultisigAddress)
		if err != nil {
			return err
		}
		signer, err = canonicalSigner(identity, signerAddress)
		if err != nil {
			return err
		}

		entry := &Entry{
			SignerAddress:   signer,
			Signature:       append([]byte(nil), signature...),
			SignedBodyBytes: append([]byte(nil), signedBodyBytes...),
			SubmittedAt:     cosign.Now(),
		}
		if err := l.entries.Upsert(kv, txID, entry); err != nil {
			return err
		}
		count, err := l.entries.CountFor(kv, txID)
		if err != nil {
			return err
		}

		state, err := l.states.GetState(kv, txID)
		if err != nil {
			return err
		}
		met := count >= int(identity.Threshold)
		if met && (state.Status == txs.Collecting || state.Status == txs.Failed) {
			state, err = l.states.Transition(kv, txID, txs.ReadyToBroadcast, func(s *txs.State) {
				s.Reason = ""
				s.Retryable = false
			})
			ready = true
		} else {
			// The state is written on every submission, so that
			// concurrent submissions conflict and the threshold check
			// always sees all entries.
			state, err = l.states.Touch(kv, txID)
		}
		if err != nil {
			return err
		}

		status = &Status{
			Count:        count,
			Threshold:    int(identity.Threshold),
			ThresholdMet: met,
			State:        state,
		}
		return nil
	})
	if err != nil {
		metrics.SignatureSubmitted(submitResult(err))
		return nil, err
	}

	metrics.SignatureSubmitted("accepted")
	log := cosign.GetLogger(ctx).With("tx", txs.FormatID(txID), "signer", signer)
	log.Info("signature accepted", "count", status.Count, "threshold", status.Threshold)
	if ready {
		metrics.ThresholdReached()
		log.Info("threshold reached")
	}
	return status, nil
}

// canonicalSigner returns the member address the way the identity encodes
// it. Malformed addresses are validation errors.
func canonicalSigner(identity *multisig.Identity, signerAddress string) (string, error) {
	idx, err := identity.MemberIndex(signerAddress)
	switch {
	case errors.ErrUnknownSigner.Is(err):
		return "", err
	case err != nil:
		return "", errors.Field("SignerAddress", errors.ErrValidation, err.Error())
	}
	addrs, err := identity.MemberAddresses()
	if err != nil {
		return "", err
	}
	return addrs[idx], nil
}

func submitResult(err error) string {
	switch {
	case errors.ErrUnknownSigner.Is(err):
		return "unknown_signer"
	case errors.ErrTransactionNotFound.Is(err):
		return "not_found"
	case errors.ErrValidation.Is(err):
		return "invalid"
	}
	return "error"
}

// Count returns the number of members that signed a transaction.
func (l *Ledger) Count(ctx context.Context, txID []byte) (int, error) {
	var n int
	err := l.db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		if _, err := l.records.GetRecord(kv, txID); err != nil {
			return err
		}
		var err error
		n, err = l.entries.CountFor(kv, txID)
		return err
	})
	return n, err
}

// IsThresholdMet returns true if enough members signed a transaction.
func (l *Ledger) IsThresholdMet(ctx context.Context, txID []byte) (bool, error) {
	var met bool
	err := l.db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		record, err := l.records.GetRecord(kv, txID)
		if err != nil {
			return err
		}
		identity, err := l.identities.Get(kv, record.ChainID, record.MultisigAddress)
		if err != nil {
			return err
		}
		n, err := l.entries.CountFor(kv, txID)
		if err != nil {
			return err
		}
		met = n >= int(identity.Threshold)
		return nil
	})
	return met, err
}

// Entries returns all signatures of a transaction in member order.
func (l *Ledger) Entries(ctx context.Context, txID []byte) ([]*Entry, error) {
	var res []*Entry
	err := l.db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		record, err := l.records.GetRecord(kv, txID)
		if err != nil {
			return err
		}
		identity, err := l.identities.Get(kv, record.ChainID, record.MultisigAddress)
		if err != nil {
			return err
		}
		res, err = LoadOrdered(kv, identity, txID)
		return err
	})
	return res, err
}

// Signed is an entry together with the position of its signer in the
// identity.
type Signed struct {
	*Entry
	MemberIndex int
}

// LoadOrdered returns entries of a transaction in member order. It is meant
// to be used inside of a store transaction that already loaded the
// identity.
func LoadOrdered(kv cosign.ReadOnlyKVStore, identity *multisig.Identity, txID []byte) ([]*Entry, error) {
	signed, err := LoadSigned(kv, identity, txID)
	if err != nil {
		return nil, err
	}
	res := make([]*Entry, len(signed))
	for i, s := range signed {
		res[i] = s.Entry
	}
	return res, nil
}

// LoadSigned is LoadOrdered that keeps the member index of every entry.
func LoadSigned(kv cosign.ReadOnlyKVStore, identity *multisig.Identity, txID []byte) ([]Signed, error) {
	entries, err := NewEntryBucket().All(kv, txID)
	if err != nil {
		return nil, err
	}
	addrs, err := identity.MemberAddresses()
	if err != nil {
		return nil, err
	}
	res := make([]Signed, 0, len(entries))
	for i, addr := range addrs {
		if e, ok := entries[addr]; ok {
			res = append(res, Signed{Entry: e, MemberIndex: i})
		}
	}
	return res, nil
}
