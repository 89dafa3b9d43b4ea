package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "persona/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestSink_Append(t *testing.T) {
	producer := &fakeProducer{}
	sink := NewSink(producer, "persona.audit")

	err := sink.Append(context.Background(), audit.Event{
		ID:        "evt-1",
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		UserKey:   "xion1abc",
		Action:    string(audit.EventPersonaUpdated),
		Namespace: "twitter",
		TxHash:    "ABC123",
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "persona.audit", rec.Topic)
	assert.Equal(t, []byte("xion1abc"), rec.Key)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "persona_updated", body["action"])
	assert.Equal(t, "twitter", body["namespace"])
	assert.Equal(t, "ABC123", body["txHash"])
	assert.NotContains(t, body, "replayed")
}

func TestSink_AppendSurfacesProduceError(t *testing.T) {
	sink := NewSink(&fakeProducer{err: errors.New("not leader")}, "t")
	err := sink.Append(context.Background(), audit.Event{Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not leader")
}
