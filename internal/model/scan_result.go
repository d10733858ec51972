package model

import "strconv"

// ScanState is the state a scan cycle finished in.
type ScanState string

var (
	// ScanDone means every final block up to the ledger height was committed.
	ScanDone ScanState = "done"
	// ScanHalted means a block could not be fetched; earlier blocks stay committed.
	ScanHalted ScanState = "halted"
	// ScanSkipped means another cycle held the guard and nothing was touched.
	ScanSkipped ScanState = "skipped"
	// ScanFailed means the cycle stopped on a fatal error.
	ScanFailed ScanState = "failed"
)

// ScanResult describes what one scan cycle did.
type ScanResult struct {
	State ScanState
	// Start is the checkpoint the cycle began from.
	Start int64
	// Reached is the last height committed to the checkpoint. It equals
	// Start when nothing was scanned.
	Reached      int64
	LedgerHeight int64
	Blocks       int
	Documents    int
	// HaltErr is the fetch error that halted the cycle.
	HaltErr error
}

// Skipped reports whether the cycle did not run because another one was in progress.
func (r ScanResult) Skipped() bool {
	return r.State == ScanSkipped
}

func (r ScanResult) String() string {
	if r.Skipped() {
		return "scan already in progress"
	}
	return "scanned to block " + strconv.FormatInt(r.Reached, 10)
}
