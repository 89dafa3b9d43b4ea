package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona/internal/persona"
	"persona/pkg/requestcontext"
)

func TestMemoryLocker_SerializesSameKey(t *testing.T) {
	l := NewMemoryLocker()
	var inside, maxInside int32

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "k")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots, "idle keys are dropped")
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestMemoryLocker_TimesOut(t *testing.T) {
	l := NewMemoryLocker()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	require.ErrorIs(t, err, ErrLockTimeout)

	release()
	release() // second call is a no-op

	again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.slots)
}

// flakyUnlock grants every SET NX and fails every script call without
// touching the network.
type flakyUnlock struct{}

func (flakyUnlock) DialHook(next redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("no network in unit tests")
	}
}

func (flakyUnlock) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch cmd.Name() {
		case "set", "setnx":
			cmd.(*redis.BoolCmd).SetVal(true)
			return nil
		case "evalsha", "eval":
			return errors.New("connection reset by peer")
		}
		return next(ctx, cmd)
	}
}

func (flakyUnlock) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisLocker_LogsFailedRelease(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(flakyUnlock{})
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	l := NewRedisLocker(client, time.Second, WithLockLogger(logger))

	ctx := requestcontext.WithRequestID(context.Background(), "req-7")
	release, err := l.Acquire(ctx, "xion1user")
	require.NoError(t, err)
	release()
	release()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "one warning per release")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "failed to release user lock", entry["msg"])
	assert.Equal(t, "persona:lock:xion1user", entry["key"])
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Contains(t, entry["error"], "connection reset by peer")
}

func TestMemoryReceipts(t *testing.T) {
	r := NewMemoryReceipts(2, time.Hour)
	ctx := context.Background()

	_, ok, err := r.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)

	want := &Result{UserKey: persona.UserKey("u"), Namespace: "twitter", Receipt: persona.WriteReceipt{TxHash: "H"}}
	require.NoError(t, r.Record(ctx, "0xabc", want))

	got, ok, err := r.Lookup(ctx, "0xabc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *want, *got)

	got.Replayed = true
	again, _, _ := r.Lookup(ctx, "0xabc")
	assert.False(t, again.Replayed, "lookups return copies")
}

func TestStoredResultRoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := &Result{UserKey: "u", Namespace: "github", Receipt: persona.WriteReceipt{TxHash: "H", Height: 4, SubmittedAt: at}}
	out := storedFrom(in).result()
	assert.Equal(t, *in, out)
}
