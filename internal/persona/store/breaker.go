package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"persona/internal/persona"
	"persona/pkg/platform/circuit"
	"persona/pkg/platform/sentinel"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = fmt.Errorf("persona store circuit open: %w", sentinel.ErrUnavailable)

type breakerStore struct {
	next    Store
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// WithBreaker fails fast with ErrCircuitOpen once the wrapped store has
// returned enough consecutive infrastructure failures. Not-found answers and
// contract rejections count as healthy responses.
func WithBreaker(next Store, breaker *circuit.Breaker, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &breakerStore{next: next, breaker: breaker, logger: logger}
}

func (b *breakerStore) Read(ctx context.Context, key persona.UserKey) (*persona.Document, error) {
	if !b.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	doc, err := b.next.Read(ctx, key)
	b.record(ctx, err)
	return doc, err
}

func (b *breakerStore) Write(ctx context.Context, key persona.UserKey, doc *persona.Document) (persona.WriteReceipt, error) {
	if !b.breaker.Allow() {
		return persona.WriteReceipt{}, ErrCircuitOpen
	}
	receipt, err := b.next.Write(ctx, key, doc)
	b.record(ctx, err)
	return receipt, err
}

func (b *breakerStore) record(ctx context.Context, err error) {
	if isInfraFailure(err) {
		if _, change := b.breaker.RecordFailure(); change.Opened {
			b.logger.WarnContext(ctx, "persona store circuit opened", "breaker", b.breaker.Name(), "error", err)
		}
		return
	}
	if _, change := b.breaker.RecordSuccess(); change.Closed {
		b.logger.InfoContext(ctx, "persona store circuit closed", "breaker", b.breaker.Name())
	}
}

func isInfraFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sentinel.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
