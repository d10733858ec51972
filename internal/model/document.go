package model

import "fmt"

// DocumentKind tells which entity an index document describes.
type DocumentKind string

var (
	// DocumentTransaction is keyed by transaction id and holds the full payload.
	DocumentTransaction DocumentKind = "transaction"
	// DocumentOffer is keyed by offer id and is enriched by every transaction of the offer.
	DocumentOffer DocumentKind = "offer"
)

// Document is a single upsert addressed to a search index.
type Document struct {
	Kind  DocumentKind
	Index string
	ID    string
	Body  map[string]any
}

// BulkItemFailure describes a document the index refused.
type BulkItemFailure struct {
	Index  string
	ID     string
	Status int
	Type   string
	Reason string
}

func (f BulkItemFailure) String() string {
	return fmt.Sprintf("%s/%s: status %d %s: %s", f.Index, f.ID, f.Status, f.Type, f.Reason)
}

// BulkResult summarizes the per-item outcome of a bulk write.
type BulkResult struct {
	Succeeded int
	Failed    []BulkItemFailure
}
