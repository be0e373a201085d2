package txs

import (
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/orm"
)

// Status of a transaction broadcast.
type Status string

const (
	// Collecting is the initial status. Not enough members signed yet.
	Collecting Status = "collecting"
	// ReadyToBroadcast means the threshold is met.
	ReadyToBroadcast Status = "ready_to_broadcast"
	// Broadcasting means a client is submitting the transaction. Only
	// the client that made this transition may submit.
	Broadcasting Status = "broadcasting"
	// Broadcast is terminal. The node accepted the transaction.
	Broadcast Status = "broadcast"
	// Failed is terminal only if not retryable.
	Failed Status = "failed"
)

// transitions lists all allowed status changes. Broadcasting to
// Broadcasting is a reclaim of an expired lease. A transaction that cannot
// be assembled fails without ever being broadcast.
var transitions = map[Status][]Status{
	Collecting:       {ReadyToBroadcast},
	ReadyToBroadcast: {Broadcasting, Failed},
	Broadcasting:     {Broadcast, Failed, Broadcasting},
	Failed:           {Broadcasting, ReadyToBroadcast, Failed},
}

// Validate returns an error if this is not a known status.
func (s Status) Validate() error {
	switch s {
	case Collecting, ReadyToBroadcast, Broadcasting, Broadcast, Failed:
		return nil
	}
	return errors.Wrapf(errors.ErrState, "unknown status %q", s)
}

// State is the broadcast state of a single transaction.
type State struct {
	Status Status `json:"status"`
	// TxHash is set once the node accepted the transaction.
	TxHash string `json:"tx_hash,omitempty"`
	// Reason is the cause of a failure as reported, without
	// interpretation.
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable"`
	// Attempt counts transitions into Broadcasting.
	Attempt int64 `json:"attempt"`
	// LeaseUntil is the deadline of the client that is broadcasting.
	LeaseUntil cosign.UnixTime `json:"lease_until,omitempty"`
	UpdatedAt  cosign.UnixTime `json:"updated_at"`
}

var _ orm.Model = (*State)(nil)

// Validate ensures the fields required by the status are set.
func (s *State) Validate() error {
	if err := s.Status.Validate(); err != nil {
		return err
	}
	switch s.Status {
	case Broadcast:
		if s.TxHash == "" {
			return errors.Field("TxHash", errors.ErrEmpty, "required when broadcast")
		}
	case Failed:
		if s.Reason == "" {
			return errors.Field("Reason", errors.ErrEmpty, "required when failed")
		}
	case Broadcasting:
		if s.LeaseUntil.IsZero() {
			return errors.Field("LeaseUntil", errors.ErrEmpty, "required when broadcasting")
		}
	}
	return nil
}

// CanTransition returns true if the state may move to given status.
func (s *State) CanTransition(to Status) bool {
	if s.Status == Failed && to == Broadcasting && !s.Retryable {
		return false
	}
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsLeaseExpired returns true if the state is Broadcasting and the owner's
// deadline passed.
func (s *State) IsLeaseExpired(now cosign.UnixTime) bool {
	return s.Status == Broadcasting && s.LeaseUntil.Before(now)
}

// StateBucket is a type-safe wrapper around orm.ModelBucket. States share
// the primary key of their record.
type StateBucket struct {
	orm.ModelBucket
}

// NewStateBucket initializes a StateBucket with default name.
func NewStateBucket() StateBucket {
	return StateBucket{
		ModelBucket: orm.NewModelBucket(StateBucketName, &State{}),
	}
}

// GetState returns the state of the transaction with given id.
func (b StateBucket) GetState(db cosign.ReadOnlyKVStore, id []byte) (*State, error) {
	var s State
	switch err := b.One(db, id, &s); {
	case errors.ErrNotFound.Is(err):
		return nil, errors.Wrapf(errors.ErrTransactionNotFound, "id %s", FormatID(id))
	case err != nil:
		return nil, err
	}
	return &s, nil
}

// Transition moves the state of a transaction to a new status. The new
// state is built by fn from a copy of the current one. It fails with
// ErrState if the status change is not allowed.
//
// Call it inside of a DB.Update to get compare-and-swap semantics.
func (b StateBucket) Transition(db cosign.KVStore, id []byte, to Status, fn func(*State)) (*State, error) {
	cur, err := b.GetState(db, id)
	if err != nil {
		return nil, err
	}
	if !cur.CanTransition(to) {
		return nil, errors.Wrapf(errors.ErrState, "%s to %s", cur.Status, to)
	}
	next := *cur
	next.Status = to
	next.UpdatedAt = cosign.Now()
	if fn != nil {
		fn(&next)
	}
	if err := b.Put(db, id, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// Touch rewrites the state unchanged except for its update time. Writers
// that depend on the state without changing it call Touch so that
// concurrent transactions conflict on the state key.
func (b StateBucket) Touch(db cosign.KVStore, id []byte) (*State, error) {
	cur, err := b.GetState(db, id)
	if err != nil {
		return nil, err
	}
	cur.UpdatedAt = cosign.Now()
	if err := b.Put(db, id, cur); err != nil {
		return nil, err
	}
	return cur, nil
}
