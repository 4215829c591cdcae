package models

import (
	"time"

	"github.com/google/uuid"
)

type DropStatus string

const (
	DropStatusPending  DropStatus = "pending"
	DropStatusMatching DropStatus = "matching"
	DropStatusMatched  DropStatus = "matched"
	DropStatusPaid     DropStatus = "paid"
)

// Drop is a single directed micro-gift awaiting pairing with another
// drop of the same amount from a different sender.
type Drop struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	SenderID  string     `json:"sender_id" db:"sender_id"`
	Amount    int64      `json:"amount" db:"amount"` // minor currency unit
	Message   string     `json:"message" db:"message"`
	Status    DropStatus `json:"status" db:"status"`
	MatchedID *uuid.UUID `json:"matched_id,omitempty" db:"matched_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateDropRequest struct {
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Message string `json:"message" validate:"max=200"`
}

// MatchEvent is pushed to the match_events queue after a pair is written,
// for downstream notification delivery.
type MatchEvent struct {
	DropID    uuid.UUID `json:"drop_id"`
	PartnerID uuid.UUID `json:"partner_id"`
	SenderID  string    `json:"sender_id"`
	Amount    int64     `json:"amount"`
	MatchedAt time.Time `json:"matched_at"`
}
