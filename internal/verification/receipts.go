package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/redis/go-redis/v9"

	"persona/internal/persona"
)

// Receipts remembers the outcome of applied proofs by claim identifier so a
// resubmitted proof is answered without writing again.
type Receipts interface {
	Lookup(ctx context.Context, identifier string) (*Result, bool, error)
	Record(ctx context.Context, identifier string, result *Result) error
}

// MemoryReceipts keeps receipts in a bounded LRU with expiry.
type MemoryReceipts struct {
	cache gcache.Cache
}

func NewMemoryReceipts(size int, ttl time.Duration) *MemoryReceipts {
	if size <= 0 {
		size = 10000
	}
	b := gcache.New(size).LRU()
	if ttl > 0 {
		b = b.Expiration(ttl)
	}
	return &MemoryReceipts{cache: b.Build()}
}

func (r *MemoryReceipts) Lookup(_ context.Context, identifier string) (*Result, bool, error) {
	v, err := r.cache.Get(identifier)
	if errors.Is(err, gcache.KeyNotFoundError) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	res := v.(Result)
	return &res, true, nil
}

func (r *MemoryReceipts) Record(_ context.Context, identifier string, result *Result) error {
	return r.cache.Set(identifier, *result)
}

// RedisReceipts shares receipts between instances.
type RedisReceipts struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisReceipts(client redis.UniversalClient, ttl time.Duration) *RedisReceipts {
	return &RedisReceipts{client: client, ttl: ttl, prefix: "persona:receipt:"}
}

type storedResult struct {
	UserKey     string    `json:"userKey"`
	Namespace   string    `json:"namespace"`
	TxHash      string    `json:"txHash"`
	Height      int64     `json:"height,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func (r *RedisReceipts) Lookup(ctx context.Context, identifier string) (*Result, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+identifier).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup receipt: %w", err)
	}
	var sr storedResult
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, false, fmt.Errorf("decode receipt: %w", err)
	}
	res := sr.result()
	return &res, true, nil
}

func (r *RedisReceipts) Record(ctx context.Context, identifier string, result *Result) error {
	raw, err := json.Marshal(storedFrom(result))
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+identifier, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("record receipt: %w", err)
	}
	return nil
}

func storedFrom(r *Result) storedResult {
	return storedResult{
		UserKey:     r.UserKey.String(),
		Namespace:   r.Namespace,
		TxHash:      r.Receipt.TxHash,
		Height:      r.Receipt.Height,
		SubmittedAt: r.Receipt.SubmittedAt,
	}
}

func (s storedResult) result() Result {
	return Result{
		UserKey:   persona.UserKey(s.UserKey),
		Namespace: s.Namespace,
		Receipt: persona.WriteReceipt{
			TxHash:      s.TxHash,
			Height:      s.Height,
			SubmittedAt: s.SubmittedAt,
		},
	}
}
