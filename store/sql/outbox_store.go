package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-credits/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	outboxStatusPending    = "pending"
	outboxStatusProcessing = "processing"
	outboxStatusDelivered  = "delivered"
	outboxStatusFailed     = "failed"
)

// eventSink writes emitted events into credits_outbox inside the caller's
// transaction, so rolled back operations leave no events behind.
type eventSink struct{ t *sqlTx }

func (s eventSink) Enqueue(ctx context.Context, event core.Event) error {
	record, err := newOutboxRecord(event, s.t.now)
	if err != nil {
		return err
	}
	var last sql.NullInt64
	if err := s.t.tx.NewSelect().
		Model((*outboxRecord)(nil)).
		ColumnExpr("MAX(sequence)").
		Scan(ctx, &last); err != nil {
		return err
	}
	record.Sequence = last.Int64 + 1
	_, err = s.t.store.outbox.CreateTx(ctx, s.t.tx, record)
	return err
}

func newOutboxRecord(event core.Event, now time.Time) (*outboxRecord, error) {
	if strings.TrimSpace(event.Name) == "" {
		return nil, fmt.Errorf("sqlstore: outbox event name is required")
	}
	if strings.TrimSpace(event.Contract) == "" {
		return nil, fmt.Errorf("sqlstore: outbox event contract is required")
	}
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	occurredAt := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		occurredAt = now
	}
	return &outboxRecord{
		ID:         uuid.NewString(),
		EventID:    eventID,
		EventName:  strings.TrimSpace(event.Name),
		Contract:   strings.TrimSpace(event.Contract),
		Caller:     strings.TrimSpace(event.Caller),
		Payload:    copyAnyMap(event.Payload),
		Metadata:   copyAnyMap(event.Metadata),
		Status:     outboxStatusPending,
		Attempts:   0,
		LastError:  "",
		OccurredAt: occurredAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OutboxStore claims and settles events recorded by the Store.
type OutboxStore struct {
	db *bun.DB
}

func NewOutboxStore(db *bun.DB) (*OutboxStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &OutboxStore{db: db}, nil
}

func (s *OutboxStore) ClaimBatch(ctx context.Context, limit int) ([]core.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: outbox store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()
	var records []outboxRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM credits_outbox
	WHERE status = ?
	  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
	ORDER BY sequence ASC
	LIMIT ?
)
UPDATE credits_outbox
SET status = ?, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	sequence,
	event_id,
	event_name,
	contract,
	caller,
	payload,
	metadata,
	status,
	attempts,
	next_attempt_at,
	last_error,
	occurred_at,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			outboxStatusPending,
			now,
			limit,
			outboxStatusProcessing,
			now,
			outboxStatusPending,
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Sequence < records[j].Sequence })
	events := make([]core.Event, 0, len(records))
	for _, record := range records {
		events = append(events, outboxRecordToEvent(record))
	}
	return events, nil
}

func (s *OutboxStore) Ack(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*outboxRecord)(nil)).
		Set("status = ?", outboxStatusDelivered).
		Set("last_error = ?", "").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func (s *OutboxStore) Retry(ctx context.Context, eventID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: outbox store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	status := outboxStatusPending
	var next *time.Time
	if !nextAttemptAt.IsZero() {
		nextValue := nextAttemptAt.UTC()
		next = &nextValue
	} else {
		status = outboxStatusFailed
	}

	lastError := ""
	if cause != nil {
		lastError = strings.TrimSpace(cause.Error())
	}
	_, err := s.db.NewUpdate().
		Model((*outboxRecord)(nil)).
		Set("status = ?", status).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = ?", next).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("event_id = ?", eventID).
		Exec(ctx)
	return err
}

func outboxRecordToEvent(record outboxRecord) core.Event {
	event := core.Event{
		ID:         record.EventID,
		Name:       record.EventName,
		Contract:   record.Contract,
		Caller:     record.Caller,
		Payload:    copyAnyMap(record.Payload),
		Metadata:   copyAnyMap(record.Metadata),
		OccurredAt: record.OccurredAt,
	}
	event.Metadata[core.MetadataKeyOutboxAttempts] = record.Attempts
	return event
}

var _ core.OutboxStore = (*OutboxStore)(nil)
