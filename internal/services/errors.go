package services

import "errors"

var (
	ErrBelowThreshold      = errors.New("balance below withdrawal threshold")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidDestination  = errors.New("invalid payout destination")
	ErrAlreadySettled      = errors.New("withdrawal already settled or in flight")
	ErrDropNotFound        = errors.New("drop not found")
	ErrMatchConflict       = errors.New("drop no longer pending")
)
