package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-backend/internal/domain"
	"deposit-backend/internal/repository"
	"deposit-backend/internal/repository/postgres"
)

var depositCols = []string{
	"id", "reservation_id", "processor_reference", "status",
	"authorized_amount_cents", "captured_amount_cents", "last_error",
	"release_reason", "capture_reason", "test_mode",
	"authorized_at", "captured_at", "released_at", "created_on", "updated_on",
}

func TestDepositRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewDepositRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		dep := &domain.Deposit{
			ReservationID: 42,
			Status:        domain.DepositStatusPending,
			TestMode:      true,
		}

		mock.ExpectQuery("INSERT INTO deposits").
			WithArgs(dep.ReservationID, dep.Status, int64(0), int64(0), true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_on", "updated_on"}).AddRow(7, now, now))

		err := repo.Create(ctx, dep)
		require.NoError(t, err)
		assert.Equal(t, int64(7), dep.ID)
	})

	t.Run("DuplicateReservation", func(t *testing.T) {
		dep := &domain.Deposit{ReservationID: 42, Status: domain.DepositStatusPending}

		mock.ExpectQuery("INSERT INTO deposits").
			WithArgs(dep.ReservationID, dep.Status, int64(0), int64(0), false).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, dep)
		assert.ErrorIs(t, err, domain.ErrDepositExists)
	})
}

func TestDepositRepository_GetByReservation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewDepositRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		now := time.Now()
		authorizedAt := now.Add(-time.Hour)
		mock.ExpectQuery("SELECT (.+) FROM deposits WHERE reservation_id").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(depositCols).AddRow(
				7, 42, "pi_test_1", "AUTHORIZED",
				30000, 0, "", "", "", true,
				authorizedAt, nil, nil, now, now,
			))

		dep, err := repo.GetByReservation(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, domain.DepositStatusAuthorized, dep.Status)
		assert.Equal(t, "pi_test_1", dep.ProcessorReference)
		assert.Equal(t, int64(30000), dep.AuthorizedAmountCents)
		require.NotNil(t, dep.AuthorizedAt)
		assert.Nil(t, dep.CapturedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM deposits WHERE reservation_id").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(depositCols))

		_, err := repo.GetByReservation(ctx, 99)
		assert.ErrorIs(t, err, domain.ErrDepositNotFound)
	})
}

func TestDepositRepository_UpdateIfStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewDepositRepository(db)
	ctx := context.Background()

	now := time.Now()
	mut := repository.DepositMutation{
		Status:                domain.DepositStatusCaptured,
		AuthorizedAmountCents: 30000,
		CapturedAmountCents:   30000,
		CaptureReason:         "damages",
		CapturedAt:            &now,
	}

	t.Run("GuardMatches", func(t *testing.T) {
		mock.ExpectExec("UPDATE deposits SET").
			WithArgs(mut.Status, "", mut.AuthorizedAmountCents, mut.CapturedAmountCents,
				"", "", "damages", nil, &now, nil,
				int64(7), domain.DepositStatusAuthorized, int64(0), false).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateIfStatus(ctx, 7, domain.DepositStatusAuthorized, 0, mut)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("GuardStale", func(t *testing.T) {
		// A concurrent transition changed status or captured amount; the
		// conditional write touches nothing.
		mock.ExpectExec("UPDATE deposits SET").
			WithArgs(mut.Status, "", mut.AuthorizedAmountCents, mut.CapturedAmountCents,
				"", "", "damages", nil, &now, nil,
				int64(7), domain.DepositStatusAuthorized, int64(0), false).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.UpdateIfStatus(ctx, 7, domain.DepositStatusAuthorized, 0, mut)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ReplacesReference", func(t *testing.T) {
		replacing := repository.DepositMutation{
			Status:                    domain.DepositStatusAuthorized,
			ProcessorReference:        "pi_fresh",
			ReplaceProcessorReference: true,
			AuthorizedAmountCents:     30000,
			AuthorizedAt:              &now,
		}
		mock.ExpectExec("UPDATE deposits SET").
			WithArgs(replacing.Status, "pi_fresh", replacing.AuthorizedAmountCents, int64(0),
				"", "", "", &now, nil, nil,
				int64(7), domain.DepositStatusPending, int64(0), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateIfStatus(ctx, 7, domain.DepositStatusPending, 0, replacing)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestDepositRepository_ListAuthorizedWithCheckoutBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewDepositRepository(db)
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM deposits d").
		WithArgs(domain.DepositStatusAuthorized, cutoff).
		WillReturnRows(sqlmock.NewRows(depositCols).
			AddRow(1, 10, "pi_a", "AUTHORIZED", 30000, 0, "", "", "", false, now, nil, nil, now, now).
			AddRow(2, 11, "pi_b", "AUTHORIZED", 15000, 0, "", "", "", false, now, nil, nil, now, now))

	stale, err := repo.ListAuthorizedWithCheckoutBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "pi_a", stale[0].ProcessorReference)
	assert.Equal(t, int64(11), stale[1].ReservationID)
}
