//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"persona/internal/platform/config"
	platformpostgres "persona/internal/platform/postgres"
	audit "persona/pkg/platform/audit"
	"persona/pkg/platform/audit/store/postgres"
	"persona/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	db       *sql.DB
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db, err := platformpostgres.Open(context.Background(), config.PostgresConfig{URL: s.postgres.DSN, MaxOpenConns: 4})
	s.Require().NoError(err)
	s.db = db
	s.store = postgres.New(db)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresStoreSuite) TestAppendAndListByUser() {
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	first := audit.Event{
		ID:         uuid.NewString(),
		Category:   audit.CategoryCompliance,
		Timestamp:  base,
		UserKey:    "xion1alice",
		Action:     string(audit.EventPersonaUpdated),
		ProviderID: "e6fe962d-8b4e-4ce5-abcc-3d21c88bd64a",
		Namespace:  "twitter",
		Outcome:    audit.OutcomeSuccess,
		TxHash:     "ABC123",
		RequestID:  "req-1",
	}
	second := first
	second.ID = uuid.NewString()
	second.Timestamp = base.Add(time.Minute)
	second.Action = string(audit.EventProofReplayed)
	second.Replayed = true

	other := first
	other.ID = uuid.NewString()
	other.UserKey = "xion1bob"

	// inserted out of order to check the ORDER BY
	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))
	s.Require().NoError(s.store.Append(ctx, other))

	events, err := s.store.ListByUser(ctx, "xion1alice")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first.ID, events[0].ID)
	s.Equal(second.ID, events[1].ID)
	s.True(events[1].Replayed)
	s.Equal("twitter", events[0].Namespace)
	s.Equal("ABC123", events[0].TxHash)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.True(first.Timestamp.Equal(events[0].Timestamp))
}

func (s *PostgresStoreSuite) TestAppendIsIdempotentOnID() {
	ctx := context.Background()
	event := audit.Event{
		ID:        uuid.NewString(),
		Category:  audit.CategorySecurity,
		Timestamp: time.Now().UTC(),
		UserKey:   "xion1carol",
		Action:    string(audit.EventProofRejected),
		Outcome:   audit.OutcomeFailure,
		Reason:    "invalid_proof",
	}
	s.Require().NoError(s.store.Append(ctx, event))
	s.Require().NoError(s.store.Append(ctx, event))

	events, err := s.store.ListByUser(ctx, "xion1carol")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestAppendAssignsIDWhenNotUUID() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		ID:        "not-a-uuid",
		Timestamp: time.Now().UTC(),
		UserKey:   "xion1dave",
		Action:    string(audit.EventVerificationRequest),
		Category:  audit.CategoryOperations,
	}))

	events, err := s.store.ListByUser(ctx, "xion1dave")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	_, err = uuid.Parse(events[0].ID)
	s.NoError(err)
}

func (s *PostgresStoreSuite) TestListByUserEmpty() {
	events, err := s.store.ListByUser(context.Background(), "xion1nobody")
	s.Require().NoError(err)
	s.Empty(events)
}
