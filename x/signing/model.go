package signing

import (
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/orm"
)

// BucketName is where we store signature entries.
const BucketName = "sigs"

// Entry is the signature of a single member.
type Entry struct {
	SignerAddress string `json:"signer_address"`
	Signature     []byte `json:"signature"`
	// SignedBodyBytes are the exact bytes the signer signed. They may
	// differ from the canonical body of the transaction.
	SignedBodyBytes []byte          `json:"signed_body_bytes"`
	SubmittedAt     cosign.UnixTime `json:"submitted_at"`
}

var _ orm.Model = (*Entry)(nil)

// Validate ensures all fields are set.
func (e *Entry) Validate() error {
	var errs error
	if e.SignerAddress == "" {
		errs = errors.AppendField(errs, "SignerAddress", errors.ErrEmpty)
	}
	if len(e.Signature) == 0 {
		errs = errors.AppendField(errs, "Signature", errors.ErrEmpty)
	}
	if len(e.SignedBodyBytes) == 0 {
		errs = errors.AppendField(errs, "SignedBodyBytes", errors.ErrEmpty)
	}
	if e.SubmittedAt.IsZero() {
		errs = errors.AppendField(errs, "SubmittedAt", errors.ErrEmpty)
	}
	return errs
}

// EntryBucket stores entries keyed by transaction id followed by the signer
// address. A transaction id is always 8 bytes, so a prefix scan by id
// returns the entries of a single transaction.
type EntryBucket struct {
	orm.ModelBucket
}

// NewEntryBucket initializes an EntryBucket with default name.
func NewEntryBucket() EntryBucket {
	return EntryBucket{
		ModelBucket: orm.NewModelBucket(BucketName, &Entry{}),
	}
}

func entryKey(txID []byte, signerAddress string) []byte {
	key := make([]byte, 0, len(txID)+1+len(signerAddress))
	key = append(key, txID...)
	key = append(key, '/')
	return append(key, signerAddress...)
}

func txPrefix(txID []byte) []byte {
	return append(append([]byte(nil), txID...), '/')
}

// Upsert stores the entry of a signer, replacing the previous one.
func (b EntryBucket) Upsert(db cosign.KVStore, txID []byte, e *Entry) error {
	return b.Put(db, entryKey(txID, e.SignerAddress), e)
}

// CountFor returns the number of signers of a transaction.
func (b EntryBucket) CountFor(db cosign.ReadOnlyKVStore, txID []byte) (int, error) {
	return b.Count(db, txPrefix(txID))
}

// All returns entries of a transaction keyed by signer address.
func (b EntryBucket) All(db cosign.ReadOnlyKVStore, txID []byte) (map[string]*Entry, error) {
	res := make(map[string]*Entry)
	err := b.PrefixScan(db, txPrefix(txID), func(key []byte, m orm.Model) error {
		e, ok := m.(*Entry)
		if !ok {
			return errors.Wrapf(errors.ErrType, "%T", m)
		}
		res[e.SignerAddress] = e
		return nil
	})
	return res, err
}
