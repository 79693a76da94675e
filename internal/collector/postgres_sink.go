package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"ktrace/internal/constants"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/models"
)

// PostgresSink writes records to the collected_events table created by
// migrations.RunPostgres.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string {
	return constants.SinkTypePostgres
}

func (s *PostgresSink) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO collected_events
			(event_id, event_type, name, event_time, user_id, session_id, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return classifyPostgresError(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		payload, err := json.Marshal(r.Event)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, string(r.Type), r.Name, r.Timestamp,
			nullString(r.UserID), nullString(r.SessionID),
			payload, r.ReceivedAt,
		); err != nil {
			return classifyPostgresError(err, "failed to insert event")
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresSink) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload, received_at
		FROM collected_events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, classifyPostgresError(err, "failed to list events")
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			payload    []byte
			receivedAt time.Time
			event      models.Event
		)
		if err := rows.Scan(&payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		records = append(records, Record{Event: event, ReceivedAt: receivedAt.UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return records, nil
}

func (s *PostgresSink) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collected_events`); err != nil {
		return classifyPostgresError(err, "failed to clear events")
	}
	return nil
}

// Close is a no-op: the pool belongs to the caller.
func (s *PostgresSink) Close() error {
	return nil
}

func classifyPostgresError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return apperrors.ErrServiceUnavailable.
			WithCause(err).
			WithDetail("message", "collected_events table missing, run migrations")
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
