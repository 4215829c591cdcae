package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/giftdrop/backend/internal/models"
	"github.com/google/uuid"
)

// WithdrawalThreshold is the minimum pending balance a user must hold
// before a withdrawal can be created, in the same currency unit as drop
// amounts. It caps eligibility, not the withdrawal amount itself.
const WithdrawalThreshold int64 = 30

// WalletService computes balances, enforces withdrawal eligibility and
// creates withdrawal requests before handing them to settlement.
type WalletService struct {
	db         *sql.DB
	settlement *SettlementService
	validator  *ValidationHelper
	audit      *AuditLogger
}

func NewWalletService(db *sql.DB, settlement *SettlementService) *WalletService {
	return &WalletService{
		db:         db,
		settlement: settlement,
		validator:  NewValidationHelper(),
		audit:      NewAuditLogger(),
	}
}

// GetWalletBalance reads the wallet row. A user without a wallet has the
// zero balance; that is not an error.
func (ws *WalletService) GetWalletBalance(ctx context.Context, userID string) (models.Balance, error) {
	balance := models.Balance{UserID: userID}
	err := ws.db.QueryRowContext(ctx, `
		SELECT pending_balance, total_earned, total_withdrawn
		FROM wallets WHERE user_id = $1`,
		userID).Scan(&balance.PendingBalance, &balance.TotalEarned, &balance.TotalWithdrawn)

	if err == sql.ErrNoRows {
		return balance, nil
	}
	return balance, err
}

func (ws *WalletService) CanWithdraw(ctx context.Context, userID string) (bool, error) {
	balance, err := ws.GetWalletBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.PendingBalance >= WithdrawalThreshold, nil
}

// CreateWithdrawal validates the request, commits a pending withdrawal row
// and then synchronously settles it. The row is durable before the rail is
// called so a crash mid-settlement can be reconciled from the pending row.
func (ws *WalletService) CreateWithdrawal(ctx context.Context, userID string, amount int64, destination string) (*models.WithdrawalResult, error) {
	if !IsValidUPIDestination(destination) {
		return nil, ErrInvalidDestination
	}

	withdrawal, err := ws.insertPendingWithdrawal(ctx, userID, amount, destination)
	if err != nil {
		return nil, err
	}

	log.Printf("[WALLET] Withdrawal %s created for user %s, amount %d", withdrawal.ID, userID, amount)
	return ws.settlement.SettlePayout(ctx, withdrawal)
}

// insertPendingWithdrawal re-reads the balance under a row lock so two
// concurrent requests for the same user cannot both pass the eligibility
// and balance checks.
func (ws *WalletService) insertPendingWithdrawal(ctx context.Context, userID string, amount int64, destination string) (*models.Withdrawal, error) {
	tx, err := ws.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var pendingBalance int64
	err = tx.QueryRowContext(ctx, `
		SELECT pending_balance FROM wallets WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&pendingBalance)
	if err == sql.ErrNoRows {
		// No wallet row means the zero balance, which is below the floor.
		return nil, ErrBelowThreshold
	}
	if err != nil {
		return nil, err
	}

	if pendingBalance < WithdrawalThreshold {
		return nil, ErrBelowThreshold
	}
	if amount > pendingBalance {
		return nil, ErrInsufficientBalance
	}

	now := time.Now()
	withdrawal := &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Destination: destination,
		Status:      models.WithdrawalStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, destination, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		withdrawal.ID, withdrawal.UserID, withdrawal.Amount, withdrawal.Destination,
		withdrawal.Status, withdrawal.CreatedAt, withdrawal.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (ws *WalletService) GetWithdrawalHistory(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	rows, err := ws.db.QueryContext(ctx, `
		SELECT id, user_id, amount, destination, status, payout_ref, failure_reason, created_at, updated_at
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := []models.Withdrawal{}
	for rows.Next() {
		var w models.Withdrawal
		if err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Destination, &w.Status,
			&w.PayoutRef, &w.FailureReason, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// HTTP handlers

// GetBalance returns the caller's wallet balance
// @Summary Get wallet balance
// @Description Read the authenticated user's pending balance and totals
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Balance
// @Failure 401 {object} ErrorResponse
// @Router /wallet/balance [get]
func (ws *WalletService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := ws.GetWalletBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[WALLET] Failed to fetch balance for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balance)
}

// CheckWithdrawable reports withdrawal eligibility
// @Summary Check withdrawal eligibility
// @Description Whether the pending balance meets the withdrawal threshold
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{can_withdraw=bool,threshold=int64}
// @Failure 401 {object} ErrorResponse
// @Router /wallet/can-withdraw [get]
func (ws *WalletService) CheckWithdrawable(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	canWithdraw, err := ws.CanWithdraw(r.Context(), userID)
	if err != nil {
		SendErrorResponse(w, "Failed to check eligibility", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"can_withdraw": canWithdraw,
		"threshold":    WithdrawalThreshold,
	})
}

// Withdraw creates and settles a withdrawal
// @Summary Create a withdrawal
// @Description Validate, persist and settle a payout to a UPI destination
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.WithdrawalRequest true "Withdrawal request"
// @Success 200 {object} models.WithdrawalResult
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /wallet/withdrawals [post]
func (ws *WalletService) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req models.WithdrawalRequest

	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ws.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := ws.CreateWithdrawal(r.Context(), userID, req.Amount, req.Destination)
	if err != nil {
		ws.audit.LogError("", userID, err)
		switch {
		case errors.Is(err, ErrBelowThreshold):
			SendErrorResponse(w, "Balance below withdrawal threshold", http.StatusBadRequest, nil)
		case errors.Is(err, ErrInsufficientBalance):
			SendErrorResponse(w, "Insufficient balance", http.StatusBadRequest, nil)
		case errors.Is(err, ErrInvalidDestination):
			SendErrorResponse(w, "Invalid payout destination", http.StatusBadRequest, nil)
		default:
			SendErrorResponse(w, "Failed to process withdrawal", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// History lists past withdrawals
// @Summary Get withdrawal history
// @Description List the authenticated user's withdrawals, newest first
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Failure 401 {object} ErrorResponse
// @Router /wallet/withdrawals [get]
func (ws *WalletService) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	withdrawals, err := ws.GetWithdrawalHistory(r.Context(), userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch withdrawals", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(withdrawals)
}
