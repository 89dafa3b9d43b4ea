package request

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/redis/go-redis/v9"
)

// Consumer records that a session ID was redeemed. Consume reports true only
// for the first call per ID within ttl.
type Consumer interface {
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// MemoryConsumer tracks redeemed IDs in process. An ID is forgotten only
// once its ttl has passed; size is where expired IDs start being swept, not
// a cap that could evict a live one.
type MemoryConsumer struct {
	mu   sync.Mutex
	used gcache.Cache
}

func NewMemoryConsumer(size int) *MemoryConsumer {
	if size <= 0 {
		size = 10000
	}
	return &MemoryConsumer{used: gcache.New(size).Simple().Build()}
}

func (c *MemoryConsumer) Consume(_ context.Context, id string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used.Has(id) {
		return false, nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.used.SetWithExpire(id, struct{}{}, ttl); err != nil {
		return false, err
	}
	return true, nil
}

// RedisConsumer shares redeemed IDs between instances.
type RedisConsumer struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisConsumer(client redis.UniversalClient) *RedisConsumer {
	return &RedisConsumer{client: client, prefix: "persona:session:"}
}

func (c *RedisConsumer) Consume(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := c.client.SetNX(ctx, c.prefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume session: %w", err)
	}
	return ok, nil
}
