package scanner

const (
	// reportedFailures caps how many refused documents are named in an error.
	reportedFailures = 3
)
