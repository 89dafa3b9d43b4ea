package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"persona/internal/persona"
	"persona/pkg/platform/sentinel"
)

// Memory keeps documents in process. Documents are stored in serialized form
// so callers never share state with the store.
type Memory struct {
	mu   sync.RWMutex
	docs map[persona.UserKey][]byte
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[persona.UserKey][]byte), now: time.Now}
}

func (m *Memory) Read(_ context.Context, key persona.UserKey) (*persona.Document, error) {
	m.mu.RLock()
	raw, ok := m.docs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("persona %s: %w", key, sentinel.ErrNotFound)
	}
	return persona.ParseDocument(raw)
}

func (m *Memory) Write(_ context.Context, key persona.UserKey, doc *persona.Document) (persona.WriteReceipt, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return persona.WriteReceipt{}, fmt.Errorf("marshal persona: %w", err)
	}
	m.mu.Lock()
	m.docs[key] = raw
	m.mu.Unlock()
	return persona.WriteReceipt{TxHash: "mem-" + uuid.NewString(), SubmittedAt: m.now()}, nil
}

// Len reports the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
