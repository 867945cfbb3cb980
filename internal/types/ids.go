// Package types holds the domain model shared by every component of the
// event core: chain identifiers, the decoded-event tagged union, and the
// durable Checkpoint/ScanRecord records.
package types

import (
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the 32-byte identifier of an on-chain program.
type ProgramID = solana.PublicKey

// Signature is the 64-byte transaction identifier, base58-rendered by its
// String method. It is the natural key for a transaction.
type Signature = solana.Signature

// ZeroSignature is the all-zero sentinel meaning "no bound" (spec §4.E,
// §8). A Signature compares equal to it with ==, since Signature is a
// fixed-size byte array.
var ZeroSignature = solana.Signature{}

// IsZeroSignature reports whether sig is the sentinel "no lower bound"
// value.
func IsZeroSignature(sig Signature) bool {
	return sig == ZeroSignature
}

// Slot is the chain's monotonically increasing logical clock.
type Slot = uint64

// Discriminator is the 8-byte event type tag: the first 8 bytes of
// SHA-256("event:" + EventTypeName).
type Discriminator [8]byte
