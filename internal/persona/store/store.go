// Package store persists persona documents. Implementations are swapped
// behind the Store interface; decorators add fast-fail and read-your-writes
// behavior on top of the ledger-backed store.
package store

import (
	"context"

	"persona/internal/persona"
)

// Collection is the docustore collection holding persona documents.
const Collection = "personas"

// Store reads and writes one persona document per user key.
//
// Read wraps sentinel.ErrNotFound when no document exists; any other error
// means the store could not answer. There is no compare-and-swap: callers
// serialize writers for the same key themselves.
type Store interface {
	Read(ctx context.Context, key persona.UserKey) (*persona.Document, error)
	Write(ctx context.Context, key persona.UserKey, doc *persona.Document) (persona.WriteReceipt, error)
}
