package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"persona/internal/ledger"
	"persona/internal/persona"
)

// DocumentStore is the docustore contract surface the ledger store needs.
type DocumentStore interface {
	Read(ctx context.Context, collection, documentID string) ([]byte, error)
	Write(ctx context.Context, collection, documentID string, data []byte) (*ledger.TxResult, error)
}

// Ledger stores persona documents in the docustore contract, keyed by the
// user's address.
type Ledger struct {
	docs DocumentStore
	now  func() time.Time
}

func NewLedger(docs DocumentStore) *Ledger {
	return &Ledger{docs: docs, now: time.Now}
}

func (l *Ledger) Read(ctx context.Context, key persona.UserKey) (*persona.Document, error) {
	raw, err := l.docs.Read(ctx, Collection, key.String())
	if err != nil {
		return nil, err
	}
	doc, err := persona.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", key, err)
	}
	return doc, nil
}

func (l *Ledger) Write(ctx context.Context, key persona.UserKey, doc *persona.Document) (persona.WriteReceipt, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return persona.WriteReceipt{}, fmt.Errorf("marshal persona: %w", err)
	}
	res, err := l.docs.Write(ctx, Collection, key.String(), raw)
	if err != nil {
		return persona.WriteReceipt{}, err
	}
	return persona.WriteReceipt{TxHash: res.TxHash, Height: res.Height, SubmittedAt: l.now()}, nil
}
