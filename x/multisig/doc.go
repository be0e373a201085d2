/*
Package multisig derives M-of-N multisig identities and keeps them in the
store.

An identity is an ordered list of secp256k1 member keys together with a
threshold. Its address is the digest of the amino encoded
tendermint/PubKeyMultisigThreshold key, exactly as Cosmos SDK chains
compute it. Member order is part of the identity: the same keys in a
different order produce a different address, so keys are never reordered
after creation.
*/
package multisig
