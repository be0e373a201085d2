/*
Package txs keeps transactions proposed for a multisig identity together with
their broadcast state.

A record is immutable once created. Its BodyBytes are the canonical payload
every member is asked to sign. The broadcast state of a record is the only
mutable part and changes only through the transitions allowed by
State.CanTransition.
*/
package txs
