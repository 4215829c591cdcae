package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/giftdrop/backend/internal/config"
	"github.com/giftdrop/backend/internal/models"
	"github.com/giftdrop/backend/internal/payout"
)

// SettlementService drives the external payout rail for a withdrawal and
// reconciles the outcome into the ledger. Per withdrawal the state machine
// is pending -> processing -> completed/failed; an indeterminate rail
// outcome leaves the row in processing for the reconciliation job.
type SettlementService struct {
	db        *sql.DB
	rail      payout.Client
	audit     *AuditLogger
	refPrefix string
}

func NewSettlementService(db *sql.DB, rail payout.Client, cfg *config.PayoutConfig) *SettlementService {
	if cfg == nil {
		cfg = config.LoadPayoutConfig()
	}
	return &SettlementService{
		db:        db,
		rail:      rail,
		audit:     NewAuditLogger(),
		refPrefix: cfg.ReferencePrefix,
	}
}

// SettlePayout settles one withdrawal. Resubmitting a withdrawal that is
// already processing or terminal returns ErrAlreadySettled and moves no
// money.
func (s *SettlementService) SettlePayout(ctx context.Context, w *models.Withdrawal) (*models.WithdrawalResult, error) {
	if err := s.markProcessing(ctx, w); err != nil {
		return nil, err
	}

	reference := fmt.Sprintf("%s-%s", s.refPrefix, w.ID)
	resp, err := s.rail.Payout(ctx, &payout.Request{
		Reference:   reference,
		Amount:      w.Amount,
		Destination: w.Destination,
	})

	switch {
	case err == nil:
		return s.complete(ctx, w, resp.PayoutRef)

	case payout.IsIndeterminate(err):
		// The rail may have paid out. Leave the row in processing; a
		// reconciliation pass resolves it with the same reference.
		log.Printf("[SETTLEMENT] Withdrawal %s outcome indeterminate: %v", w.ID, err)
		s.audit.LogSettlement(w.ID.String(), w.UserID, w.Amount, "INDETERMINATE")
		return &models.WithdrawalResult{
			WithdrawalID:  w.ID,
			Status:        models.WithdrawalStatusProcessing,
			FailureReason: "payout outcome pending reconciliation",
		}, nil

	default:
		return s.fail(ctx, w, err)
	}
}

func (s *SettlementService) markProcessing(ctx context.Context, w *models.Withdrawal) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, w.ID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		log.Printf("[SETTLEMENT] Withdrawal %s already settled or in flight", w.ID)
		return ErrAlreadySettled
	}
	w.Status = models.WithdrawalStatusProcessing
	return nil
}

// complete marks the withdrawal completed and debits the wallet in a single
// transaction so the status and the balance can never diverge.
func (s *SettlementService) complete(ctx context.Context, w *models.Withdrawal, payoutRef string) (*models.WithdrawalResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'completed', payout_ref = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'processing'`, payoutRef, w.ID)
	if err != nil {
		return nil, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrAlreadySettled
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1,
		    total_withdrawn = total_withdrawn + $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND pending_balance >= $1`, w.Amount, w.UserID)
	if err != nil {
		return nil, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Funds were paid out but the wallet cannot cover the debit. Roll
		// back the status update and surface for manual reconciliation.
		s.audit.LogError(w.ID.String(), w.UserID, fmt.Errorf("wallet debit failed after payout %s", payoutRef))
		return nil, fmt.Errorf("wallet debit failed for withdrawal %s", w.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[SETTLEMENT] Withdrawal %s completed, ref=%s", w.ID, payoutRef)
	s.audit.LogSettlement(w.ID.String(), w.UserID, w.Amount, "COMPLETED")
	return &models.WithdrawalResult{
		WithdrawalID: w.ID,
		Status:       models.WithdrawalStatusCompleted,
		PayoutRef:    payoutRef,
	}, nil
}

// fail records a definite rail rejection. The wallet is untouched: the
// funds were never debited, so they remain pending implicitly.
func (s *SettlementService) fail(ctx context.Context, w *models.Withdrawal, railErr error) (*models.WithdrawalResult, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'failed', failure_reason = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'processing'`, railErr.Error(), w.ID)
	if err != nil {
		return nil, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrAlreadySettled
	}

	log.Printf("[SETTLEMENT] Withdrawal %s failed: %v", w.ID, railErr)
	s.audit.LogSettlement(w.ID.String(), w.UserID, w.Amount, "FAILED")
	return &models.WithdrawalResult{
		WithdrawalID:  w.ID,
		Status:        models.WithdrawalStatusFailed,
		FailureReason: railErr.Error(),
	}, nil
}
