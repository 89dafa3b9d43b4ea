//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"persona/internal/platform/config"
	platformkafka "persona/internal/platform/kafka"
	audit "persona/pkg/platform/audit"
	"persona/pkg/platform/audit/store/kafka"
	"persona/pkg/testutil/containers"
)

type SinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *kgo.Client
	topic    string
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkSuite))
}

func (s *SinkSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	s.topic = "persona.audit." + uuid.NewString()[:8]

	client, err := platformkafka.NewClient(config.KafkaConfig{
		Brokers: []string{s.redpanda.Broker},
		Topic:   s.topic,
	})
	s.Require().NoError(err)
	s.client = client

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(platformkafka.EnsureTopic(ctx, client, s.topic, 3))
	// second call hits TopicAlreadyExists
	s.Require().NoError(platformkafka.EnsureTopic(ctx, client, s.topic, 3))
}

func (s *SinkSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *SinkSuite) TestAppendedEventsAreConsumableInOrder() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink := kafka.NewSink(s.client, s.topic)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	actions := []audit.AuditEvent{audit.EventPersonaUpdated, audit.EventProofReplayed, audit.EventPersonaUpdated}
	for i, action := range actions {
		s.Require().NoError(sink.Append(ctx, audit.Event{
			ID:        uuid.NewString(),
			Category:  action.Category(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			UserKey:   "xion1alice",
			Action:    string(action),
			Namespace: "github",
		}))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) < len(actions) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for audit records")
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}

	s.Require().Len(records, len(actions))
	partition := records[0].Partition
	for i, rec := range records {
		s.Equal("xion1alice", string(rec.Key))
		s.Equal(partition, rec.Partition, "one user's events share a partition")

		var body map[string]any
		s.Require().NoError(json.Unmarshal(rec.Value, &body))
		s.Equal(string(actions[i]), body["action"])
		s.Equal("github", body["namespace"])

		headers := map[string]string{}
		for _, h := range rec.Headers {
			headers[h.Key] = string(h.Value)
		}
		s.Equal(string(actions[i]), headers["action"])
		s.Equal(string(actions[i].Category()), headers["category"])
	}
}
