package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Write(_ context.Context, event Event) error {
	e := s.log.Info()
	if event.Status == StatusFailure {
		e = s.log.Warn()
	}
	e = e.Str("event_id", event.ID).
		Time("occurred_at", event.OccurredAt).
		Str("request_id", event.RequestID).
		Str("actor", event.Actor.Display).
		Str("ip", event.Source.IPAddress).
		Str("action", event.Action).
		Str("resource", event.ResourceType+"/"+event.ResourceID).
		Str("status", event.Status)
	if event.Changes != nil {
		e = e.Interface("changes", event.Changes)
	}
	if event.ErrorMessage != nil {
		e = e.Str("error", *event.ErrorMessage)
	}
	e.Msg("audit")
	return nil
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// MultiSink writes every event to all sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS placement_audit_log (
	id            UUID PRIMARY KEY,
	occurred_at   TIMESTAMPTZ NOT NULL,
	request_id    TEXT NOT NULL DEFAULT '',
	actor         JSONB NOT NULL,
	ip_address    TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id   TEXT NOT NULL DEFAULT '',
	before_state  JSONB,
	after_state   JSONB,
	changes       JSONB,
	status        TEXT NOT NULL,
	error_message TEXT
)`

// PostgresSink stores events in the placement_audit_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates the audit table when missing.
func NewPostgresSink(ctx context.Context, pool *pgxpool.Pool) (*PostgresSink, error) {
	if _, err := pool.Exec(ctx, createAuditTable); err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Write(ctx context.Context, event Event) error {
	actor, err := json.Marshal(event.Actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	before, err := jsonOrNil(event.BeforeState)
	if err != nil {
		return err
	}
	after, err := jsonOrNil(event.AfterState)
	if err != nil {
		return err
	}
	changes, err := jsonOrNil(event.Changes)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO placement_audit_log
			(id, occurred_at, request_id, actor, ip_address, user_agent, action,
			 resource_type, resource_id, before_state, after_state, changes, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		event.ID, event.OccurredAt, event.RequestID, actor, event.Source.IPAddress, event.Source.UserAgent,
		event.Action, event.ResourceType, event.ResourceID, before, after, changes, event.Status, event.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func jsonOrNil(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode audit state: %w", err)
	}
	return b, nil
}
