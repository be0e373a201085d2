package txs

import (
	"context"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/x/multisig"
)

// CreateRequest describes a transaction to propose.
type CreateRequest struct {
	MultisigAddress string
	ChainID         string
	BodyBytes       []byte
	Fee             Fee
	AccountSequence int64
	AccountNumber   int64
	Memo            string
}

// Create stores a new record for an existing multisig identity. Its state
// starts as Collecting. Both are written in the same transaction.
func Create(ctx context.Context, db cosign.DB, req CreateRequest) (*Record, error) {
	amount, err := req.Fee.Amount.Normalize()
	if err != nil {
		return nil, errors.Field("Fee", errors.ErrValidation, err.Error())
	}
	if len(amount) == 0 {
		amount = nil
	}
	record := &Record{
		MultisigAddress: req.MultisigAddress,
		ChainID:         req.ChainID,
		BodyBytes:       append([]byte(nil), req.BodyBytes...),
		Fee:             Fee{Amount: amount, Gas: req.Fee.Gas},
		AccountSequence: req.AccountSequence,
		AccountNumber:   req.AccountNumber,
		Memo:            req.Memo,
		CreatedAt:       cosign.Now(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	identities := multisig.NewIdentityBucket()
	records := NewRecordBucket()
	states := NewStateBucket()
	err = db.Update(ctx, func(kv cosign.KVStore) error {
		if _, err := identities.Get(kv, record.ChainID, record.MultisigAddress); err != nil {
			return err
		}
		if err := records.Insert(kv, record); err != nil {
			return err
		}
		return states.Put(kv, record.ID, &State{
			Status:    Collecting,
			UpdatedAt: record.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	cosign.GetLogger(ctx).Info("transaction proposed",
		"id", FormatID(record.ID),
		"multisig", record.MultisigAddress,
		"chain", record.ChainID,
		"sequence", record.AccountSequence)
	return record, nil
}

// Get returns the record with given id.
func Get(ctx context.Context, db cosign.DB, id []byte) (*Record, error) {
	var r *Record
	err := db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		var err error
		r, err = NewRecordBucket().GetRecord(kv, id)
		return err
	})
	return r, err
}

// GetState returns the broadcast state of the transaction with given id.
func GetState(ctx context.Context, db cosign.DB, id []byte) (*State, error) {
	var s *State
	err := db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		var err error
		s, err = NewStateBucket().GetState(kv, id)
		return err
	})
	return s, err
}

// ListByMultisig returns all records proposed for given multisig, oldest
// first.
func ListByMultisig(ctx context.Context, db cosign.DB, chainID, address string) ([]*Record, error) {
	records := NewRecordBucket()
	var res []*Record
	err := db.View(ctx, func(kv cosign.ReadOnlyKVStore) error {
		ids, err := records.ByMultisig(kv, chainID, address)
		if err != nil {
			return err
		}
		res = make([]*Record, 0, len(ids))
		for _, id := range ids {
			r, err := records.GetRecord(kv, id)
			if err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})
	return res, err
}
