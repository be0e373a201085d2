/*
Package broadcast assembles the final transaction of a multisig and submits
it to the chain exactly once.

Any number of clients may ask for a broadcast of the same transaction. Only
the one that moves the transaction state from ReadyToBroadcast to
Broadcasting talks to the node, all others get ErrAlreadyInProgress. The
owner holds a lease on the Broadcasting state. If the owner dies, the lease
expires and the next request takes the transaction over.
*/
package broadcast

import (
	"bytes"
	"context"
	"time"

	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/cosmostx"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/metrics"
	"github.com/iov-one/cosign/x/multisig"
	"github.com/iov-one/cosign/x/signing"
	"github.com/iov-one/cosign/x/txs"
)

// AssemblyPolicy decides which signatures go into the final transaction.
type AssemblyPolicy string

const (
	// AssembleThreshold uses the first threshold signatures, in member
	// order.
	AssembleThreshold AssemblyPolicy = "threshold"
	// AssembleAll uses every collected signature.
	AssembleAll AssemblyPolicy = "all"
)

// Validate returns an error if this is not a known policy.
func (p AssemblyPolicy) Validate() error {
	switch p {
	case AssembleThreshold, AssembleAll:
		return nil
	}
	return errors.Wrapf(errors.ErrInput, "unknown assembly policy %q", p)
}

// ReasonTimeout is the failure reason of a broadcast the node did not answer
// in time.
const ReasonTimeout = "timeout"

// Config of a Coordinator.
type Config struct {
	// Timeout is how long a single broadcast waits for the node.
	Timeout time.Duration
	// LeaseGrace is added to Timeout to get the lease of the
	// Broadcasting state. It covers the time needed to store the
	// outcome.
	LeaseGrace time.Duration
	Assembly   AssemblyPolicy
}

// DefaultConfig returns the configuration used by NewCoordinator when none
// is given.
func DefaultConfig() Config {
	return Config{
		Timeout:    30 * time.Second,
		LeaseGrace: 10 * time.Second,
		Assembly:   AssembleThreshold,
	}
}

// Coordinator is the broadcast state machine of multisig transactions.
type Coordinator struct {
	db   cosign.DB
	node cosign.Node
	conf Config
	now  func() time.Time

	records    txs.RecordBucket
	states     txs.StateBucket
	identities multisig.IdentityBucket
}

// NewCoordinator returns a coordinator submitting through given node.
func NewCoordinator(db cosign.DB, node cosign.Node, conf Config) (*Coordinator, error) {
	def := DefaultConfig()
	if conf.Timeout <= 0 {
		conf.Timeout = def.Timeout
	}
	if conf.LeaseGrace <= 0 {
		conf.LeaseGrace = def.LeaseGrace
	}
	if conf.Assembly == "" {
		conf.Assembly = def.Assembly
	}
	if err := conf.Assembly.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		db:         db,
		node:       node,
		conf:       conf,
		now:        time.Now,
		records:    txs.NewRecordBucket(),
		states:     txs.NewStateBucket(),
		identities: multisig.NewIdentityBucket(),
	}, nil
}

// claim is what the winner of the transition into Broadcasting needs to
// submit the transaction.
type claim struct {
	state   *txs.State
	txBytes []byte
}

// Broadcast assembles the transaction with given id and submits it to the
// node. It returns the final state of this attempt.
//
// A transaction that is not ReadyToBroadcast fails with
// ErrThresholdNotMet, ErrAlreadyInProgress, ErrAlreadyBroadcast or
// ErrInconsistentSignedPayload, depending on its state. A retryable Failed
// transaction is broadcast again.
func (c *Coordinator) Broadcast(ctx context.Context, txID []byte) (*txs.State, error) {
	ctx = cosign.WithLogInfo(ctx, "tx", txs.FormatID(txID))
	log := cosign.GetLogger(ctx)

	cl, err := c.claim(ctx, txID)
	if err != nil {
		metrics.BroadcastOutcome(outcome(err))
		log.Debug("broadcast refused", "err", err)
		return nil, err
	}
	log.Info("broadcasting", "attempt", cl.state.Attempt)

	nodeCtx, cancel := context.WithTimeout(ctx, c.conf.Timeout)
	defer cancel()
	start := time.Now()
	hash, nodeErr := c.node.BroadcastTx(nodeCtx, cl.txBytes)
	metrics.ObserveBroadcast(time.Since(start))
	if nodeErr != nil && (errors.ErrTimeout.Is(nodeErr) || nodeCtx.Err() == context.DeadlineExceeded) {
		nodeErr = errors.Wrap(errors.ErrTimeout, nodeErr.Error())
	}

	// The outcome must be stored even if the caller gave up. A
	// transaction left in Broadcasting blocks everyone until its lease
	// expires.
	state, err := c.finish(context.WithoutCancel(ctx), txID, cl.state.Attempt, hash, nodeErr)
	if err != nil {
		metrics.BroadcastOutcome("error")
		log.Error("cannot store broadcast outcome", "err", err, "node_err", nodeErr)
		if nodeErr != nil {
			return nil, nodeErr
		}
		return nil, err
	}
	metrics.BroadcastOutcome(outcome(nodeErr))
	if nodeErr != nil {
		log.Error("broadcast failed", "err", nodeErr)
		return state, nodeErr
	}
	log.Info("broadcast", "hash", state.TxHash)
	return state, nil
}

// claim moves the transaction into Broadcasting and builds the transaction
// bytes in a single store transaction. Inconsistent signatures move it to a
// non retryable Failed state instead.
func (c *Coordinator) claim(ctx context.Context, txID []byte) (*claim, error) {
	var (
		res    *claim
		refuse error
	)
	err := c.db.Update(ctx, func(kv cosign.KVStore) error {
		res, refuse = nil, nil

		state, err := c.states.GetState(kv, txID)
		if err != nil {
			return err
		}
		now := cosign.AsUnixTime(c.now())
		switch {
		case state.Status == txs.Broadcast:
			return errors.Wrapf(errors.ErrAlreadyBroadcast, "hash %s", state.TxHash)
		case state.Status == txs.Collecting:
			return errors.ErrThresholdNotMet
		case state.Status == txs.Broadcasting && !state.IsLeaseExpired(now):
			return errors.Wrapf(errors.ErrAlreadyInProgress, "attempt %d", state.Attempt)
		case state.Status == txs.Failed && !state.Retryable:
			return errors.Wrap(errors.ErrInconsistentSignedPayload, state.Reason)
		}

		record, err := c.records.GetRecord(kv, txID)
		if err != nil {
			return err
		}
		identity, err := c.identities.Get(kv, record.ChainID, record.MultisigAddress)
		if err != nil {
			return err
		}
		signed, err := signing.LoadSigned(kv, identity, txID)
		if err != nil {
			return err
		}
		selected, body, err := c.selectSigned(record, identity, signed)
		if errors.ErrInconsistentSignedPayload.Is(err) {
			// Stored as a non retryable failure. Members must sign
			// again before another broadcast.
			refuse = err
			_, err := c.states.Transition(kv, txID, txs.Failed, func(s *txs.State) {
				s.Reason = refuse.Error()
				s.Retryable = false
				s.LeaseUntil = 0
			})
			return err
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(body, record.BodyBytes) {
			cosign.GetLogger(ctx).Info("members signed a body that differs from the proposed one")
		}

		sigs := make(map[int][]byte, len(selected))
		for _, s := range selected {
			sigs[s.MemberIndex] = s.Signature
		}
		txBytes, err := cosmostx.MakeMultisignedTx(cosmostx.Multisigned{
			PubKeys:    identity.PubKeys,
			Threshold:  identity.Threshold,
			Sequence:   uint64(record.AccountSequence),
			FeeAmount:  record.Fee.Amount,
			GasLimit:   record.Fee.Gas,
			BodyBytes:  body,
			Signatures: sigs,
		})
		if err != nil {
			return err
		}

		lease := c.conf.Timeout + c.conf.LeaseGrace
		next, err := c.states.Transition(kv, txID, txs.Broadcasting, func(s *txs.State) {
			s.Attempt++
			s.LeaseUntil = now.Add(lease)
			s.Reason = ""
			s.Retryable = false
		})
		if err != nil {
			return err
		}
		res = &claim{state: next, txBytes: txBytes}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refuse != nil {
		return nil, refuse
	}
	return res, nil
}

// selectSigned applies the assembly policy to signatures in member order
// and returns the selected signatures together with the bytes they signed.
//
// With AssembleThreshold the first threshold members that signed the same
// bytes are used. Signatures over the proposed body are preferred, then the
// first payload that enough members agree on. With AssembleAll every
// signature must cover the same bytes.
func (c *Coordinator) selectSigned(record *txs.Record, identity *multisig.Identity, signed []signing.Signed) ([]signing.Signed, []byte, error) {
	threshold := int(identity.Threshold)
	if len(signed) < threshold {
		return nil, nil, errors.ErrThresholdNotMet.Newf("%d of %d signatures", len(signed), threshold)
	}

	if c.conf.Assembly == AssembleAll {
		body := signed[0].SignedBodyBytes
		for _, s := range signed[1:] {
			if !bytes.Equal(body, s.SignedBodyBytes) {
				return nil, nil, errors.ErrInconsistentSignedPayload.Newf("%s and %s signed different bytes",
					signed[0].SignerAddress, s.SignerAddress)
			}
		}
		return signed, body, nil
	}

	if matching := signedOver(signed, record.BodyBytes); len(matching) >= threshold {
		return matching[:threshold], record.BodyBytes, nil
	}
	for i, s := range signed {
		if bytes.Equal(s.SignedBodyBytes, record.BodyBytes) {
			continue
		}
		// Groups starting later than an earlier member of the same
		// payload were already counted.
		if i > 0 && len(signedOver(signed[:i], s.SignedBodyBytes)) > 0 {
			continue
		}
		if matching := signedOver(signed[i:], s.SignedBodyBytes); len(matching) >= threshold {
			return matching[:threshold], s.SignedBodyBytes, nil
		}
	}
	return nil, nil, errors.ErrInconsistentSignedPayload.Newf("no %d of %d signatures cover the same bytes",
		threshold, len(signed))
}

// signedOver returns the signatures over the given bytes, in order.
func signedOver(signed []signing.Signed, body []byte) []signing.Signed {
	var res []signing.Signed
	for _, s := range signed {
		if bytes.Equal(s.SignedBodyBytes, body) {
			res = append(res, s)
		}
	}
	return res
}

// finish stores the outcome of the attempt. An attempt that lost its lease
// to another client does not overwrite the newer state, unless the node
// accepted the transaction.
func (c *Coordinator) finish(ctx context.Context, txID []byte, attempt int64, hash string, nodeErr error) (*txs.State, error) {
	var res *txs.State
	err := c.db.Update(ctx, func(kv cosign.KVStore) error {
		cur, err := c.states.GetState(kv, txID)
		if err != nil {
			return err
		}
		owner := cur.Status == txs.Broadcasting && cur.Attempt == attempt

		if nodeErr == nil {
			if cur.Status == txs.Broadcast {
				res = cur
				return nil
			}
			if cur.Status != txs.Broadcasting {
				// A newer attempt stored its own outcome, but the chain
				// has the transaction.
				cosign.GetLogger(ctx).Error("node accepted a transaction after its lease was taken over",
					"status", cur.Status, "attempt", attempt)
				next := *cur
				next.Status = txs.Broadcast
				next.TxHash = hash
				next.Reason = ""
				next.Retryable = false
				next.LeaseUntil = 0
				next.UpdatedAt = cosign.Now()
				res = &next
				return c.states.Put(kv, txID, res)
			}
			res, err = c.states.Transition(kv, txID, txs.Broadcast, func(s *txs.State) {
				s.TxHash = hash
				s.LeaseUntil = 0
			})
			return err
		}

		if !owner {
			res = cur
			return nil
		}
		reason := nodeErr.Error()
		if errors.ErrTimeout.Is(nodeErr) {
			reason = ReasonTimeout
		}
		res, err = c.states.Transition(kv, txID, txs.Failed, func(s *txs.State) {
			s.Reason = reason
			s.Retryable = true
			s.LeaseUntil = 0
		})
		return err
	})
	return res, err
}

// State returns the broadcast state of a transaction.
func (c *Coordinator) State(ctx context.Context, txID []byte) (*txs.State, error) {
	return txs.GetState(ctx, c.db, txID)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "broadcast"
	case errors.ErrAlreadyInProgress.Is(err):
		return "in_progress"
	case errors.ErrAlreadyBroadcast.Is(err):
		return "already_broadcast"
	case errors.ErrThresholdNotMet.Is(err):
		return "threshold_not_met"
	case errors.ErrInconsistentSignedPayload.Is(err):
		return "inconsistent"
	case errors.ErrTimeout.Is(err):
		return "timeout"
	case errors.ErrNodeRejected.Is(err):
		return "rejected"
	case errors.ErrNodeUnavailable.Is(err):
		return "unavailable"
	case errors.ErrTransactionNotFound.Is(err):
		return "not_found"
	}
	return "error"
}
