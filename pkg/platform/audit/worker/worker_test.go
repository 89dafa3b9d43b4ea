package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "persona/pkg/platform/audit"
)

func TestWorker_DeliversUntilInboxClosed(t *testing.T) {
	inbox := make(chan audit.Event, 3)
	var mu sync.Mutex
	var got []string
	w := NewWorker(func(_ context.Context, e audit.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Action)
		if e.Action == "b" {
			return errors.New("sink down")
		}
		return nil
	}, inbox, nil)

	inbox <- audit.Event{Action: "a"}
	inbox <- audit.Event{Action: "b"}
	inbox <- audit.Event{Action: "c"}
	close(inbox)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWorker(func(context.Context, audit.Event) error { return nil }, make(chan audit.Event), nil)
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}
