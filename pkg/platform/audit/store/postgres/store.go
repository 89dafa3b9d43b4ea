package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	audit "persona/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	user_key    TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	provider_id TEXT NOT NULL DEFAULT '',
	namespace   TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	tx_hash     TEXT NOT NULL DEFAULT '',
	replayed    BOOLEAN NOT NULL DEFAULT FALSE,
	request_id  TEXT NOT NULL DEFAULT '',
	client_ip   TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS audit_events_user_key_idx ON audit_events (user_key, timestamp);
`

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

// Append inserts an event. Re-inserting the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, user_key, action, provider_id, namespace,
			outcome, reason, tx_hash, replayed, request_id, client_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.UserKey,
		event.Action,
		event.ProviderID,
		event.Namespace,
		event.Outcome,
		event.Reason,
		event.TxHash,
		event.Replayed,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a user, oldest first.
func (s *Store) ListByUser(ctx context.Context, userKey string) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, user_key, action, provider_id, namespace,
			   outcome, reason, tx_hash, replayed, request_id, client_ip, user_agent
		FROM audit_events
		WHERE user_key = $1
		ORDER BY timestamp ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userKey)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			eventID  uuid.UUID
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&event.UserKey,
			&event.Action,
			&event.ProviderID,
			&event.Namespace,
			&event.Outcome,
			&event.Reason,
			&event.TxHash,
			&event.Replayed,
			&event.RequestID,
			&event.ClientIP,
			&event.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID.String()
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
