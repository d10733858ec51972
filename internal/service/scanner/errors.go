package scanner

import "errors"

var (
	// ErrStoreUnavailable is returned when the checkpoint cannot be read or written.
	ErrStoreUnavailable = errors.New("checkpoint store unavailable")
	// ErrChainHeightUnavailable is returned when the ledger height cannot be read.
	ErrChainHeightUnavailable = errors.New("chain height unavailable")
	// ErrBulkWrite is returned when a bulk request fails as a whole.
	ErrBulkWrite = errors.New("bulk write failed")
	// ErrPartialBulkWrite is returned when the index refuses some documents of a block.
	ErrPartialBulkWrite = errors.New("bulk write partially failed")
	// ErrGuardUnavailable is returned when the single-flight guard cannot be queried.
	ErrGuardUnavailable = errors.New("scan guard unavailable")
)
