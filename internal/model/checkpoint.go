// Package model defines domain models for ledger indexing.
package model

import "errors"

// InitialHeight is the checkpoint value meaning nothing has been scanned yet.
const InitialHeight int64 = -1

// ErrCheckpointExists is returned by create-if-absent writes when the record is already present.
var ErrCheckpointExists = errors.New("checkpoint already exists")

// Checkpoint is the highest block height fully processed by a scan cycle.
type Checkpoint struct {
	Height int64 `json:"current_height"`
}
