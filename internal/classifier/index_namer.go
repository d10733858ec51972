package classifier

import (
	"fmt"
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/clock"
)

// Bucketing selects how index names are derived from the processing time.
type Bucketing string

var (
	// BucketHourly appends the Unix start of the processing-time hour to the prefix.
	BucketHourly Bucketing = "hourly"
	// BucketNone writes every document into the bare prefix index.
	BucketNone Bucketing = "none"
)

const (
	DefaultTransactionPrefix = "blockchain_tx"
	DefaultOfferPrefix       = "blockchain_offer"
)

// IndexNamer maps document kinds to target index names.
type IndexNamer struct {
	bucketing   Bucketing
	txPrefix    string
	offerPrefix string
}

// NewIndexNamer validates the bucketing strategy and prefixes.
func NewIndexNamer(bucketing Bucketing, txPrefix, offerPrefix string) (IndexNamer, error) {
	switch bucketing {
	case BucketHourly, BucketNone:
	default:
		return IndexNamer{}, fmt.Errorf("unknown index bucketing %q", bucketing)
	}
	if txPrefix == "" || offerPrefix == "" {
		return IndexNamer{}, fmt.Errorf("index prefixes are required")
	}
	if txPrefix == offerPrefix {
		return IndexNamer{}, fmt.Errorf("transaction and offer index prefixes must differ, both are %q", txPrefix)
	}
	return IndexNamer{bucketing: bucketing, txPrefix: txPrefix, offerPrefix: offerPrefix}, nil
}

// Transaction returns the transaction index for documents processed at t.
func (n IndexNamer) Transaction(t time.Time) string {
	return n.name(n.txPrefix, t)
}

// Offer returns the offer index for documents processed at t.
func (n IndexNamer) Offer(t time.Time) string {
	return n.name(n.offerPrefix, t)
}

func (n IndexNamer) name(prefix string, t time.Time) string {
	if n.bucketing == BucketNone {
		return prefix
	}
	return fmt.Sprintf("%s_%d", prefix, clock.HourStart(t))
}
