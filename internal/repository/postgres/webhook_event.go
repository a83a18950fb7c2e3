package postgres

import (
	"context"
	"database/sql"
	"time"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/repository"
)

type webhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) repository.WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

const webhookEventColumns = `id, external_event_id, type, payload, COALESCE(related_reference, ''),
	livemode, status, attempts, COALESCE(last_error, ''), received_at, processed_at, next_attempt_at`

// InsertIfAbsent relies on the unique index on external_event_id: a
// duplicate delivery inserts nothing and returns false so the caller can
// acknowledge without reprocessing.
func (r *webhookEventRepository) InsertIfAbsent(ctx context.Context, ev *domain.WebhookEvent) (bool, error) {
	query := `INSERT INTO webhook_events (external_event_id, type, payload, related_reference, livemode, status, attempts, received_at)
	          VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, 0, NOW())
	          ON CONFLICT (external_event_id) DO NOTHING
	          RETURNING id, received_at`
	err := r.db.QueryRowContext(ctx, query,
		ev.ExternalEventID, ev.Type, ev.Payload, ev.RelatedReference, ev.Livemode, domain.WebhookEventStatusReceived,
	).Scan(&ev.ID, &ev.ReceivedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ev.Status = domain.WebhookEventStatusReceived
	return true, nil
}

func (r *webhookEventRepository) GetByID(ctx context.Context, id int64) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *webhookEventRepository) GetByExternalID(ctx context.Context, externalEventID string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE external_event_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, externalEventID))
}

func (r *webhookEventRepository) scanOne(row *sql.Row) (*domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	err := row.Scan(
		&ev.ID, &ev.ExternalEventID, &ev.Type, &ev.Payload, &ev.RelatedReference,
		&ev.Livemode, &ev.Status, &ev.Attempts, &ev.LastError, &ev.ReceivedAt, &ev.ProcessedAt, &ev.NextAttemptAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *webhookEventRepository) MarkProcessing(ctx context.Context, id int64) error {
	query := `UPDATE webhook_events SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, domain.WebhookEventStatusProcessing, id)
	return err
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id int64) error {
	query := `UPDATE webhook_events SET status = $1, processed_at = NOW(), last_error = NULL, next_attempt_at = NULL WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, domain.WebhookEventStatusProcessed, id)
	return err
}

func (r *webhookEventRepository) MarkRetrying(ctx context.Context, id int64, attempts int32, lastError string, nextAttemptAt time.Time) error {
	query := `UPDATE webhook_events SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4 WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, domain.WebhookEventStatusRetrying, attempts, lastError, nextAttemptAt, id)
	return err
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, id int64, attempts int32, lastError string) error {
	query := `UPDATE webhook_events SET status = $1, attempts = $2, last_error = $3, next_attempt_at = NULL WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, domain.WebhookEventStatusFailed, attempts, lastError, id)
	return err
}

func (r *webhookEventRepository) ListDueForRetry(ctx context.Context, now time.Time, limit int32) ([]domain.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events
	          WHERE status IN ($1, $2) AND (next_attempt_at IS NULL OR next_attempt_at <= $3)
	          ORDER BY received_at
	          LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, domain.WebhookEventStatusReceived, domain.WebhookEventStatusRetrying, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WebhookEvent
	for rows.Next() {
		var ev domain.WebhookEvent
		if err := rows.Scan(
			&ev.ID, &ev.ExternalEventID, &ev.Type, &ev.Payload, &ev.RelatedReference,
			&ev.Livemode, &ev.Status, &ev.Attempts, &ev.LastError, &ev.ReceivedAt, &ev.ProcessedAt, &ev.NextAttemptAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
