/*
Package cosign defines the common interfaces and types shared by the
multisig coordination packages, as well as implementations of some of the
simpler components (when interfaces would be too much overhead).

A multisig identity is derived once from an ordered list of member public
keys and a threshold (see x/multisig). Every transaction proposed for that
identity is stored as an immutable record (x/txs) and collects partial
signatures from independent clients in a per transaction ledger
(x/signing). Once enough members signed, any client may ask the broadcast
coordinator (x/broadcast) to assemble and submit the final transaction.

No process owns the shared state. All of it lives in a DB (see store.go)
and every mutation is expressed as a single serializable Update call.

We pass context through context.Context between the HTTP layer, the
coordinator and the stores. There should exist two functions for every XYZ of
type T that we want to support in Context:

	WithXYZ(Context, T) Context
	GetXYZ(Context) T
*/
package cosign
