package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/repository"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type depositRepository struct {
	db *sql.DB
}

func NewDepositRepository(db *sql.DB) repository.DepositRepository {
	return &depositRepository{db: db}
}

const depositColumns = `id, reservation_id, COALESCE(processor_reference, ''), status,
	authorized_amount_cents, captured_amount_cents, COALESCE(last_error, ''),
	COALESCE(release_reason, ''), COALESCE(capture_reason, ''), test_mode,
	authorized_at, captured_at, released_at, created_on, updated_on`

func (r *depositRepository) Create(ctx context.Context, dep *domain.Deposit) error {
	query := `INSERT INTO deposits (reservation_id, status, authorized_amount_cents, captured_amount_cents, test_mode, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_on, updated_on`
	err := r.db.QueryRowContext(ctx, query,
		dep.ReservationID, dep.Status, dep.AuthorizedAmountCents, dep.CapturedAmountCents, dep.TestMode,
	).Scan(&dep.ID, &dep.CreatedOn, &dep.UpdatedOn)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return domain.ErrDepositExists
	}
	return err
}

func (r *depositRepository) GetByID(ctx context.Context, id int64) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *depositRepository) GetByReservation(ctx context.Context, reservationID int64) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE reservation_id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, reservationID))
}

func (r *depositRepository) GetByProcessorReference(ctx context.Context, reference string) (*domain.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE processor_reference = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, reference))
}

func (r *depositRepository) scanOne(row *sql.Row) (*domain.Deposit, error) {
	var dep domain.Deposit
	err := row.Scan(
		&dep.ID, &dep.ReservationID, &dep.ProcessorReference, &dep.Status,
		&dep.AuthorizedAmountCents, &dep.CapturedAmountCents, &dep.LastError,
		&dep.ReleaseReason, &dep.CaptureReason, &dep.TestMode,
		&dep.AuthorizedAt, &dep.CapturedAt, &dep.ReleasedAt, &dep.CreatedOn, &dep.UpdatedOn,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// UpdateIfStatus applies the mutation only while the row still carries the
// status and captured amount the caller observed. Set-once columns
// (processor_reference and the transition timestamps) are guarded with
// COALESCE so a redundant write can never overwrite them; the replace
// flag lifts that guard for the reference when an abandoned authorization
// attempt hands the row over to a fresh payment intent.
func (r *depositRepository) UpdateIfStatus(ctx context.Context, id int64, expectedStatus domain.DepositStatus, expectedCapturedCents int64, mut repository.DepositMutation) (bool, error) {
	query := `UPDATE deposits SET
	            status = $1,
	            processor_reference = CASE WHEN $14 THEN NULLIF($2, '')
	                                       ELSE COALESCE(processor_reference, NULLIF($2, '')) END,
	            authorized_amount_cents = $3,
	            captured_amount_cents = $4,
	            last_error = NULLIF($5, ''),
	            release_reason = COALESCE(NULLIF($6, ''), release_reason),
	            capture_reason = COALESCE(NULLIF($7, ''), capture_reason),
	            authorized_at = COALESCE(authorized_at, $8),
	            captured_at = COALESCE(captured_at, $9),
	            released_at = COALESCE(released_at, $10),
	            updated_on = NOW()
	          WHERE id = $11 AND status = $12 AND captured_amount_cents = $13`
	result, err := r.db.ExecContext(ctx, query,
		mut.Status, mut.ProcessorReference, mut.AuthorizedAmountCents, mut.CapturedAmountCents,
		mut.LastError, mut.ReleaseReason, mut.CaptureReason,
		mut.AuthorizedAt, mut.CapturedAt, mut.ReleasedAt,
		id, expectedStatus, expectedCapturedCents,
		mut.ReplaceProcessorReference,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *depositRepository) ListAuthorizedWithCheckoutBefore(ctx context.Context, cutoff time.Time) ([]domain.Deposit, error) {
	query := `SELECT d.id, d.reservation_id, COALESCE(d.processor_reference, ''), d.status,
	            d.authorized_amount_cents, d.captured_amount_cents, COALESCE(d.last_error, ''),
	            COALESCE(d.release_reason, ''), COALESCE(d.capture_reason, ''), d.test_mode,
	            d.authorized_at, d.captured_at, d.released_at, d.created_on, d.updated_on
	          FROM deposits d
	          JOIN reservations r ON r.id = d.reservation_id
	          WHERE d.status = $1 AND r.check_out_at < $2
	          ORDER BY d.id`
	rows, err := r.db.QueryContext(ctx, query, domain.DepositStatusAuthorized, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Deposit
	for rows.Next() {
		var dep domain.Deposit
		if err := rows.Scan(
			&dep.ID, &dep.ReservationID, &dep.ProcessorReference, &dep.Status,
			&dep.AuthorizedAmountCents, &dep.CapturedAmountCents, &dep.LastError,
			&dep.ReleaseReason, &dep.CaptureReason, &dep.TestMode,
			&dep.AuthorizedAt, &dep.CapturedAt, &dep.ReleasedAt, &dep.CreatedOn, &dep.UpdatedOn,
		); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}
