package models

import (
	"time"

	"github.com/google/uuid"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// Withdrawal is a payout request against a user's pending balance.
// Status moves pending -> processing -> completed/failed and never
// regresses out of a terminal state.
type Withdrawal struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	UserID        string           `json:"user_id" db:"user_id"`
	Amount        int64            `json:"amount" db:"amount"`
	Destination   string           `json:"destination" db:"destination"` // UPI handle
	Status        WithdrawalStatus `json:"status" db:"status"`
	PayoutRef     *string          `json:"payout_ref,omitempty" db:"payout_ref"`
	FailureReason *string          `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

type WithdrawalRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	Destination string `json:"destination" validate:"required,max=256"`
}

// WithdrawalResult is what the wallet/settlement services hand back to the
// caller after a withdrawal attempt.
type WithdrawalResult struct {
	WithdrawalID  uuid.UUID        `json:"withdrawal_id"`
	Status        WithdrawalStatus `json:"status"`
	PayoutRef     string           `json:"payout_ref,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
}
