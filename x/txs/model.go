package txs

import (
	"strconv"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/coin"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/orm"
)

const (
	// RecordBucketName is where we store transaction records.
	RecordBucketName = "txs"
	// StateBucketName is where we store broadcast states.
	StateBucketName = "txstate"

	maxMemoLength = 256
)

// Fee is the fee and gas limit a transaction pays.
type Fee struct {
	Amount coin.Coins `json:"amount"`
	Gas    uint64     `json:"gas"`
}

// Validate requires a valid amount. A zero gas limit is left for the chain
// to reject.
func (f Fee) Validate() error {
	return f.Amount.Validate()
}

// Record is a transaction proposed for a multisig identity.
type Record struct {
	ID              []byte          `json:"-"`
	MultisigAddress string          `json:"multisig_address"`
	ChainID         string          `json:"chain_id"`
	BodyBytes       []byte          `json:"body_bytes"`
	Fee             Fee             `json:"fee"`
	AccountSequence int64           `json:"account_sequence"`
	AccountNumber   int64           `json:"account_number"`
	Memo            string          `json:"memo"`
	CreatedAt       cosign.UnixTime `json:"created_at"`
}

var _ orm.Model = (*Record)(nil)

// Validate returns a field error of kind ErrValidation for every
// malformed field.
func (r *Record) Validate() error {
	var errs error
	if len(r.BodyBytes) == 0 {
		errs = errors.Append(errs, errors.Field("BodyBytes", errors.ErrValidation, "empty"))
	}
	if r.AccountSequence < 0 {
		errs = errors.Append(errs, errors.Field("AccountSequence", errors.ErrValidation, "negative"))
	}
	if r.AccountNumber < 0 {
		errs = errors.Append(errs, errors.Field("AccountNumber", errors.ErrValidation, "negative"))
	}
	if !cosign.IsValidChainID(r.ChainID) {
		errs = errors.Append(errs, errors.Field("ChainID", errors.ErrValidation, "invalid chain id %q", r.ChainID))
	}
	if _, _, err := cosign.ParseBech32(r.MultisigAddress); err != nil {
		errs = errors.Append(errs, errors.Field("MultisigAddress", errors.ErrValidation, err.Error()))
	}
	if err := r.Fee.Validate(); err != nil {
		errs = errors.Append(errs, errors.Field("Fee", errors.ErrValidation, err.Error()))
	}
	if len(r.Memo) > maxMemoLength {
		errs = errors.Append(errs, errors.Field("Memo", errors.ErrValidation, "longer than %d", maxMemoLength))
	}
	if r.CreatedAt.IsZero() {
		errs = errors.Append(errs, errors.Field("CreatedAt", errors.ErrValidation, "empty"))
	}
	return errs
}

// FormatID returns the external representation of a record id.
func FormatID(id []byte) string {
	n, err := orm.DecodeSequence(id)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// EncodeID returns the id of the n-th record.
func EncodeID(n int64) []byte {
	return orm.EncodeSequence(n)
}

// ParseID is the inverse of FormatID.
func ParseID(s string) ([]byte, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return nil, errors.Wrapf(errors.ErrTransactionNotFound, "invalid id %q", s)
	}
	return EncodeID(n), nil
}

// RecordBucket is a type-safe wrapper around orm.ModelBucket. Records are
// indexed by the multisig that proposed them.
type RecordBucket struct {
	orm.ModelBucket
	seq orm.Sequence
}

// NewRecordBucket initializes a RecordBucket with default name.
func NewRecordBucket() RecordBucket {
	b := orm.NewModelBucket(RecordBucketName, &Record{}).
		WithIndex("multisig", func(m orm.Model) ([]byte, error) {
			r, ok := m.(*Record)
			if !ok {
				return nil, errors.Wrapf(errors.ErrType, "%T", m)
			}
			return multisigKey(r.ChainID, r.MultisigAddress), nil
		})
	return RecordBucket{
		ModelBucket: b,
		seq:         orm.NewSequence(RecordBucketName, "id"),
	}
}

func multisigKey(chainID, address string) []byte {
	return []byte(chainID + "/" + address)
}

// GetRecord returns the record with given id or ErrTransactionNotFound.
func (b RecordBucket) GetRecord(db cosign.ReadOnlyKVStore, id []byte) (*Record, error) {
	var r Record
	switch err := b.One(db, id, &r); {
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrapf(errors.ErrTransactionNotFound, "id %s", FormatID(id))
	case err != nil:
		return nil, err
	}
	r.ID = id
	return &r, nil
}

// Insert assigns the next id to the record and stores it. Records are
// never updated.
func (b RecordBucket) Insert(db cosign.KVStore, r *Record) error {
	id, err := b.seq.NextVal(db)
	if err != nil {
		return errors.Wrap(err, "sequence")
	}
	if err := b.Put(db, id, r); err != nil {
		return err
	}
	r.ID = id
	return nil
}

// ByMultisig returns ids of all records of given multisig, oldest first.
func (b RecordBucket) ByMultisig(db cosign.ReadOnlyKVStore, chainID, address string) ([][]byte, error) {
	return b.ByIndex(db, "multisig", multisigKey(chainID, address))
}
