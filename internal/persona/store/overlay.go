package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bluele/gcache"

	"persona/internal/persona"
	"persona/pkg/platform/sentinel"
)

type overlayStore struct {
	next   Store
	recent gcache.Cache
}

// OverlayOption configures WithOverlay.
type OverlayOption func(*overlayConfig)

type overlayConfig struct {
	size  int
	ttl   time.Duration
	clock gcache.Clock
}

func OverlaySize(n int) OverlayOption {
	return func(c *overlayConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

func OverlayTTL(d time.Duration) OverlayOption {
	return func(c *overlayConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// OverlayClock overrides the cache clock for tests.
func OverlayClock(clock gcache.Clock) OverlayOption {
	return func(c *overlayConfig) { c.clock = clock }
}

// WithOverlay remembers documents this process wrote for a short TTL and
// serves them on Read when the wrapped store has not caught up yet: a
// missing document, or one with an older lastUpdatedAt. The overlay never
// hides a read failure.
func WithOverlay(next Store, opts ...OverlayOption) Store {
	cfg := overlayConfig{size: 10000, ttl: 2 * time.Minute, clock: gcache.NewRealClock()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &overlayStore{
		next:   next,
		recent: gcache.New(cfg.size).LRU().Expiration(cfg.ttl).Clock(cfg.clock).Build(),
	}
}

func (o *overlayStore) Read(ctx context.Context, key persona.UserKey) (*persona.Document, error) {
	doc, err := o.next.Read(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	pending, ok := o.pending(key)
	if !ok {
		return doc, err
	}
	if doc != nil && !doc.LastUpdatedAt.Before(pending.LastUpdatedAt) {
		o.recent.Remove(key)
		return doc, nil
	}
	return pending, nil
}

func (o *overlayStore) Write(ctx context.Context, key persona.UserKey, doc *persona.Document) (persona.WriteReceipt, error) {
	receipt, err := o.next.Write(ctx, key, doc)
	if err != nil {
		return receipt, err
	}
	if raw, merr := json.Marshal(doc); merr == nil {
		_ = o.recent.Set(key, raw)
	}
	return receipt, nil
}

func (o *overlayStore) pending(key persona.UserKey) (*persona.Document, bool) {
	v, err := o.recent.Get(key)
	if err != nil {
		return nil, false
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	doc, err := persona.ParseDocument(raw)
	if err != nil {
		return nil, false
	}
	return doc, true
}
