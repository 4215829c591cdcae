package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/giftdrop/backend/internal/config"
	"github.com/giftdrop/backend/internal/models"
	"github.com/giftdrop/backend/internal/payout"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestWithdrawal(amount int64) *models.Withdrawal {
	now := time.Now()
	return &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      "user-1",
		Amount:      amount,
		Destination: "user@upi",
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newTestSettlementService(db *sql.DB, rail payout.Client) *SettlementService {
	return NewSettlementService(db, rail, &config.PayoutConfig{ReferencePrefix: "PAYOUT"})
}

func TestSettlementService_SettlePayout(t *testing.T) {
	t.Run("successful settlement debits wallet and completes atomically", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rail := new(MockPayoutClient)
		service := newTestSettlementService(db, rail)
		w := newTestWithdrawal(4000)
		reference := fmt.Sprintf("PAYOUT-%s", w.ID)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
			WithArgs(w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rail.On("Payout", mock.Anything, &payout.Request{
			Reference:   reference,
			Amount:      4000,
			Destination: "user@upi",
		}).Return(&payout.Response{PayoutRef: "ref-777", Status: "SUCCESS"}, nil)

		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE withdrawals SET status = 'completed'").
			WithArgs("ref-777", w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE wallets").
			WithArgs(int64(4000), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		result, err := service.SettlePayout(context.Background(), w)
		assert.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusCompleted, result.Status)
		assert.Equal(t, "ref-777", result.PayoutRef)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		rail.AssertExpectations(t)
	})

	t.Run("rail rejection marks failed and leaves wallet untouched", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rail := new(MockPayoutClient)
		service := newTestSettlementService(db, rail)
		w := newTestWithdrawal(4000)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
			WithArgs(w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		railErr := &payout.RailError{Code: "INVALID_VPA", Message: "destination does not exist"}
		rail.On("Payout", mock.Anything, mock.Anything).Return(nil, railErr)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'failed'").
			WithArgs(railErr.Error(), w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		result, err := service.SettlePayout(context.Background(), w)
		assert.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusFailed, result.Status)
		assert.Contains(t, result.FailureReason, "INVALID_VPA")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("indeterminate outcome stays processing", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rail := new(MockPayoutClient)
		service := newTestSettlementService(db, rail)
		w := newTestWithdrawal(4000)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
			WithArgs(w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rail.On("Payout", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: rail returned status 502", payout.ErrIndeterminate))

		result, err := service.SettlePayout(context.Background(), w)
		assert.NoError(t, err)
		assert.Equal(t, models.WithdrawalStatusProcessing, result.Status)
		// No wallet update and no terminal status write.
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("resubmitting a terminal withdrawal is rejected before the rail call", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rail := new(MockPayoutClient)
		service := newTestSettlementService(db, rail)
		w := newTestWithdrawal(4000)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
			WithArgs(w.ID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err = service.SettlePayout(context.Background(), w)
		assert.ErrorIs(t, err, ErrAlreadySettled)
		rail.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("failed wallet debit rolls back the completion", func(t *testing.T) {
		db, dbMock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		rail := new(MockPayoutClient)
		service := newTestSettlementService(db, rail)
		w := newTestWithdrawal(4000)

		dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
			WithArgs(w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rail.On("Payout", mock.Anything, mock.Anything).
			Return(&payout.Response{PayoutRef: "ref-888"}, nil)

		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE withdrawals SET status = 'completed'").
			WithArgs("ref-888", w.ID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE wallets").
			WithArgs(int64(4000), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		dbMock.ExpectRollback()

		_, err = service.SettlePayout(context.Background(), w)
		assert.Error(t, err)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
