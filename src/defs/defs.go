// Package defs holds error kinds and sentinel values shared across the
// simulator core, mirroring the teacher's small leaf "defs" package.
package defs

import "errors"

var (
	/// ErrConfigFatal reports a non-power-of-two geometry or an out-of-range
	/// physical address. Always a configuration bug, never a runtime fault.
	ErrConfigFatal = errors.New("nvdsim: configuration is fatal")

	/// ErrAllocationExhausted reports that the FTL could not find a free
	/// physical page and garbage collection could not help.
	ErrAllocationExhausted = errors.New("nvdsim: no free page and GC exhausted")

	/// ErrUnknownTxnKind reports a transaction kind outside
	/// {DataRead, DataWrite, BlockErase} reaching the FTL.
	ErrUnknownTxnKind = errors.New("nvdsim: unknown transaction kind")
)

/// UnmappedSentinel is the payload value returned for a DATA_READ of a vAddr
/// that was never written. Not an error: unmapped reads always succeed.
const UnmappedSentinel uint64 = 0xdeadbeef
