package postgres

import (
	"database/sql"

	"deposit-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.ReservationRepository
	repository.DepositRepository
	repository.WebhookEventRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                     db,
		ReservationRepository:  NewReservationRepository(db),
		DepositRepository:      NewDepositRepository(db),
		WebhookEventRepository: NewWebhookEventRepository(db),
	}
}
