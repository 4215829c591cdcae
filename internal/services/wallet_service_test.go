package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/giftdrop/backend/internal/models"
	"github.com/giftdrop/backend/internal/payout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestWalletService(db *sql.DB, rail payout.Client) *WalletService {
	return NewWalletService(db, newTestSettlementService(db, rail))
}

func expectBalanceRow(dbMock sqlmock.Sqlmock, userID string, pending, earned, withdrawn int64) {
	dbMock.ExpectQuery("SELECT pending_balance, total_earned, total_withdrawn").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"pending_balance", "total_earned", "total_withdrawn"}).
			AddRow(pending, earned, withdrawn))
}

// expectWithdrawalAccepted covers the pending insert for a request that
// passes the locked balance check.
func expectWithdrawalAccepted(dbMock sqlmock.Sqlmock, userID string, amount, lockedBalance int64) {
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT pending_balance FROM wallets").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"pending_balance"}).AddRow(lockedBalance))
	dbMock.ExpectExec("INSERT INTO withdrawals").
		WithArgs(sqlmock.AnyArg(), userID, amount, "user@upi",
			models.WithdrawalStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()
}

// expectSettlementCompleted covers the settlement pipeline after the pending
// row is committed.
func expectSettlementCompleted(dbMock sqlmock.Sqlmock, userID string, amount int64, payoutRef string) {
	dbMock.ExpectExec("UPDATE withdrawals SET status = 'processing'").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectBegin()
	dbMock.ExpectExec("UPDATE withdrawals SET status = 'completed'").
		WithArgs(payoutRef, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectExec("UPDATE wallets").
		WithArgs(amount, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectCommit()
}

func TestWalletService_GetWalletBalance(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newTestWalletService(db, new(MockPayoutClient))

	t.Run("returns the wallet row", func(t *testing.T) {
		expectBalanceRow(dbMock, "user-1", 150, 200, 50)

		balance, err := service.GetWalletBalance(context.Background(), "user-1")
		assert.NoError(t, err)
		assert.Equal(t, int64(150), balance.PendingBalance)
		assert.Equal(t, int64(200), balance.TotalEarned)
		assert.Equal(t, int64(50), balance.TotalWithdrawn)
	})

	t.Run("user without a wallet has the zero balance", func(t *testing.T) {
		dbMock.ExpectQuery("SELECT pending_balance, total_earned, total_withdrawn").
			WithArgs("user-2").
			WillReturnError(sql.ErrNoRows)

		balance, err := service.GetWalletBalance(context.Background(), "user-2")
		assert.NoError(t, err)
		assert.Equal(t, int64(0), balance.PendingBalance)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestWalletService_CanWithdraw(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := newTestWalletService(db, new(MockPayoutClient))

	t.Run("balance at the threshold is withdrawable", func(t *testing.T) {
		expectBalanceRow(dbMock, "user-1", WithdrawalThreshold, WithdrawalThreshold, 0)

		ok, err := service.CanWithdraw(context.Background(), "user-1")
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("balance below the threshold is not", func(t *testing.T) {
		expectBalanceRow(dbMock, "user-1", WithdrawalThreshold-1, WithdrawalThreshold-1, 0)

		ok, err := service.CanWithdraw(context.Background(), "user-1")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestWalletService_CreateWithdrawal_Rejections(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rail := new(MockPayoutClient)
	service := newTestWalletService(db, rail)

	t.Run("invalid destination", func(t *testing.T) {
		_, err := service.CreateWithdrawal(context.Background(), "user-1", 50, "not a upi id")
		assert.ErrorIs(t, err, ErrInvalidDestination)
	})

	t.Run("locked balance below the threshold", func(t *testing.T) {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT pending_balance FROM wallets").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"pending_balance"}).AddRow(WithdrawalThreshold - 1))
		dbMock.ExpectRollback()

		_, err := service.CreateWithdrawal(context.Background(), "user-1", 10, "user@upi")
		assert.ErrorIs(t, err, ErrBelowThreshold)
	})

	t.Run("amount exceeds locked balance", func(t *testing.T) {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT pending_balance FROM wallets").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"pending_balance"}).AddRow(int64(35)))
		dbMock.ExpectRollback()

		_, err := service.CreateWithdrawal(context.Background(), "user-1", 50, "user@upi")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
	})

	t.Run("user without a wallet row", func(t *testing.T) {
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT pending_balance FROM wallets").
			WithArgs("user-1").
			WillReturnError(sql.ErrNoRows)
		dbMock.ExpectRollback()

		_, err := service.CreateWithdrawal(context.Background(), "user-1", 50, "user@upi")
		assert.ErrorIs(t, err, ErrBelowThreshold)
	})

	// No rejection ever reaches the payout rail.
	rail.AssertNotCalled(t, "Payout", mock.Anything, mock.Anything)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

// TestWalletService_WithdrawalSequence walks a wallet with balance 100
// through two successful withdrawals and a final one that exceeds the
// remaining balance. The second withdrawal is smaller than the threshold;
// it still succeeds because the threshold gates the balance, not the
// amount.
func TestWalletService_WithdrawalSequence(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	rail := new(MockPayoutClient)
	rail.On("Payout", mock.Anything, mock.Anything).
		Return(&payout.Response{PayoutRef: "ref-1", Status: "SUCCESS"}, nil)
	service := newTestWalletService(db, rail)

	// Withdraw 40 against a balance of 100.
	expectWithdrawalAccepted(dbMock, "user-1", 40, 100)
	expectSettlementCompleted(dbMock, "user-1", 40, "ref-1")

	result, err := service.CreateWithdrawal(context.Background(), "user-1", 40, "user@upi")
	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, result.Status)

	// Withdraw 25 against the remaining 60.
	expectWithdrawalAccepted(dbMock, "user-1", 25, 60)
	expectSettlementCompleted(dbMock, "user-1", 25, "ref-1")

	result, err = service.CreateWithdrawal(context.Background(), "user-1", 25, "user@upi")
	assert.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, result.Status)

	// Withdraw 50 against the remaining 35: rejected, nothing written.
	dbMock.ExpectBegin()
	dbMock.ExpectQuery("SELECT pending_balance FROM wallets").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"pending_balance"}).AddRow(int64(35)))
	dbMock.ExpectRollback()

	_, err = service.CreateWithdrawal(context.Background(), "user-1", 50, "user@upi")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.NoError(t, dbMock.ExpectationsWereMet())
	rail.AssertExpectations(t)
}
