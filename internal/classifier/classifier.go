// Package classifier turns ledger transactions into search index documents.
package classifier

import (
	"time"

	"github.com/goodnatureofminers/ledgerscan/internal/model"
)

// Classifier builds index documents for transactions. It holds no state
// besides the index naming rules and is safe for concurrent use.
type Classifier struct {
	namer IndexNamer
}

// New returns a Classifier writing into indices chosen by namer.
func New(namer IndexNamer) *Classifier {
	return &Classifier{namer: namer}
}

// Classify returns the documents for tx processed at the given time.
// Transactions without an id produce nothing; every other transaction yields
// a transaction document, followed by an offer document when it references an offer.
func (c *Classifier) Classify(tx model.Transaction, at time.Time) []model.Document {
	if tx.ID == "" {
		return nil
	}

	docs := make([]model.Document, 0, 2)
	docs = append(docs, model.Document{
		Kind:  model.DocumentTransaction,
		Index: c.namer.Transaction(at),
		ID:    tx.ID,
		Body:  tx.Raw,
	})

	if tx.OfferID != "" {
		docs = append(docs, model.Document{
			Kind:  model.DocumentOffer,
			Index: c.namer.Offer(at),
			ID:    tx.OfferID,
			Body:  offerBody(tx),
		})
	}

	return docs
}

func offerBody(tx model.Transaction) map[string]any {
	body := map[string]any{
		"offer_id": tx.OfferID,
	}
	offer := tx.Offer
	if offer == nil {
		offer = &model.OfferBody{}
	}

	switch tx.Action {
	case model.ActionAcceptOffer:
		body["accept_offer_tx"] = tx.Raw
		body["responded_at"] = offer.RespondedAt
		body["responded_by"] = offer.RespondedBy
		body["responded_by_account"] = offer.RespondedByAccount
	case model.ActionPutOffer:
		body["put_offer_tx"] = tx.Raw
		body["created_at"] = offer.CreatedAt
		body["created_by"] = offer.CreatedBy
		body["created_by_account"] = offer.CreatedByAccount
	}

	return body
}
