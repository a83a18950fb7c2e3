package postgres

import (
	"context"
	"database/sql"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/repository"
)

type reservationRepository struct {
	db *sql.DB
}

func NewReservationRepository(db *sql.DB) repository.ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	query := `INSERT INTO reservations (guest_name, property_name, check_in_at, check_out_at, hold_amount_cents, created_on)
	          VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_on`
	return r.db.QueryRowContext(ctx, query,
		res.GuestName, res.PropertyName, res.CheckInAt, res.CheckOutAt, res.HoldAmountCents,
	).Scan(&res.ID, &res.CreatedOn)
}

func (r *reservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	query := `SELECT id, guest_name, property_name, check_in_at, check_out_at, hold_amount_cents, created_on
	          FROM reservations WHERE id = $1`
	var res domain.Reservation
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&res.ID, &res.GuestName, &res.PropertyName, &res.CheckInAt, &res.CheckOutAt, &res.HoldAmountCents, &res.CreatedOn,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepository) List(ctx context.Context) ([]domain.Reservation, error) {
	query := `SELECT id, guest_name, property_name, check_in_at, check_out_at, hold_amount_cents, created_on
	          FROM reservations ORDER BY check_in_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(&res.ID, &res.GuestName, &res.PropertyName, &res.CheckInAt, &res.CheckOutAt, &res.HoldAmountCents, &res.CreatedOn); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
