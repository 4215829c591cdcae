package services

import (
	"encoding/json"
	"log"
	"time"
)

type AuditEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	ReferenceID  string    `json:"reference_id"`
	UserID       string    `json:"user_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Details      any       `json:"details"`
}

// AuditLogger emits one JSON line per money movement so that settlement
// results can be reconciled from logs.
type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogSettlement(withdrawalID, userID string, amount int64, status string) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   "SETTLEMENT",
		ReferenceID: withdrawalID,
		UserID:      userID,
		Amount:      amount,
		Status:      status,
	}
	a.log(event)
}

func (a *AuditLogger) LogMatch(dropID, partnerID string, amount int64) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   "MATCH",
		ReferenceID: dropID,
		Amount:      amount,
		Status:      "SUCCESS",
		Details: map[string]string{
			"partner_id": partnerID,
		},
	}
	a.log(event)
}

func (a *AuditLogger) LogError(referenceID, userID string, err error) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   "ERROR",
		ReferenceID: referenceID,
		UserID:      userID,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
