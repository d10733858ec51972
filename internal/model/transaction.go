package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Action is the ledger operation a transaction performed.
type Action string

var (
	// ActionPutOffer opens an offer.
	ActionPutOffer Action = "PutOffer"
	// ActionAcceptOffer responds to an open offer.
	ActionAcceptOffer Action = "AcceptOffer"
	// ActionOther covers every other action; the original name stays in Transaction.Raw.
	ActionOther Action = "Other"
)

const (
	fieldTransactionID = "transaction_id"
	fieldAction        = "action"
	fieldOfferID       = "offer_id"
	fieldOfferBody     = "offer_body"
)

// OfferBody holds the offer lifecycle fields carried by offer transactions.
// Optional fields are nil when the ledger omitted them.
type OfferBody struct {
	CreatedAt          any
	CreatedBy          any
	CreatedByAccount   any
	RespondedAt        any
	RespondedBy        any
	RespondedByAccount any
}

// Transaction is a ledger transaction decoded at the ledger boundary.
// Raw keeps the complete payload as delivered, including unknown fields.
type Transaction struct {
	ID      string
	Action  Action
	OfferID string
	Offer   *OfferBody
	Raw     map[string]any
}

// NewTransaction validates a raw payload and builds a Transaction from it.
// PutOffer and AcceptOffer transactions that reference an offer must carry an
// offer_body with their required fields.
func NewTransaction(raw map[string]any) (Transaction, error) {
	if raw == nil {
		return Transaction{}, errors.New("transaction payload is empty")
	}

	id, err := stringField(raw, fieldTransactionID)
	if err != nil {
		return Transaction{}, err
	}
	offerID, err := stringField(raw, fieldOfferID)
	if err != nil {
		return Transaction{}, err
	}
	name, err := stringField(raw, fieldAction)
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ID:      id,
		Action:  parseAction(name),
		OfferID: offerID,
		Raw:     raw,
	}

	if body, ok := raw[fieldOfferBody].(map[string]any); ok {
		tx.Offer = &OfferBody{
			CreatedAt:          body["created_at"],
			CreatedBy:          body["created_by"],
			CreatedByAccount:   body["created_by_account"],
			RespondedAt:        body["responded_at"],
			RespondedBy:        body["responded_by"],
			RespondedByAccount: body["responded_by_account"],
		}
	}

	if tx.OfferID == "" {
		return tx, nil
	}

	switch tx.Action {
	case ActionPutOffer:
		if err := tx.requireOffer("created_at", "created_by"); err != nil {
			return Transaction{}, err
		}
	case ActionAcceptOffer:
		if err := tx.requireOffer("responded_at", "responded_by"); err != nil {
			return Transaction{}, err
		}
	}

	return tx, nil
}

// UnmarshalJSON decodes a ledger payload, keeping numbers as json.Number so
// they are re-encoded without loss.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}

	tx, err := NewTransaction(raw)
	if err != nil {
		return err
	}
	*t = tx
	return nil
}

func (t Transaction) requireOffer(fields ...string) error {
	if t.Offer == nil {
		return fmt.Errorf("transaction %q: %s offer %q has no offer_body", t.ID, t.Action, t.OfferID)
	}
	body := t.Raw[fieldOfferBody].(map[string]any)
	for _, f := range fields {
		if _, ok := body[f]; !ok {
			return fmt.Errorf("transaction %q: %s offer %q: offer_body.%s is missing", t.ID, t.Action, t.OfferID, f)
		}
	}
	return nil
}

func parseAction(name string) Action {
	switch Action(name) {
	case ActionPutOffer:
		return ActionPutOffer
	case ActionAcceptOffer:
		return ActionAcceptOffer
	default:
		return ActionOther
	}
}

func stringField(raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("field %s has unsupported type %T", key, v)
	}
}
