package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/giftdrop/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// DropService covers the drop lifecycle around the matcher: creation of
// pending drops, the matched -> paid confirmation that credits the
// recipient's wallet, and UPI collect QR codes.
type DropService struct {
	db    *sql.DB
	redis *redis.Client
	audit *AuditLogger
}

func NewDropService(db *sql.DB, redisClient *redis.Client) *DropService {
	return &DropService{
		db:    db,
		redis: redisClient,
		audit: NewAuditLogger(),
	}
}

func (s *DropService) CreateDrop(ctx context.Context, senderID string, amount int64, message string) (*models.Drop, error) {
	now := time.Now()
	drop := &models.Drop{
		ID:        uuid.New(),
		SenderID:  senderID,
		Amount:    amount,
		Message:   message,
		Status:    models.DropStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drops (id, sender_id, amount, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		drop.ID, drop.SenderID, drop.Amount, drop.Message, drop.Status, drop.CreatedAt, drop.UpdatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[DROP] Drop %s created by %s, amount %d", drop.ID, senderID, amount)
	return drop, nil
}

func (s *DropService) ListUserDrops(ctx context.Context, userID string) ([]models.Drop, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, amount, message, status, matched_id, created_at, updated_at
		FROM drops
		WHERE sender_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drops := []models.Drop{}
	for rows.Next() {
		var d models.Drop
		if err := rows.Scan(&d.ID, &d.SenderID, &d.Amount, &d.Message, &d.Status,
			&d.MatchedID, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		drops = append(drops, d)
	}
	return drops, rows.Err()
}

// ConfirmDropPaid transitions a matched drop to paid and credits the
// recipient's wallet in the same transaction. Only drops in matched state
// can be confirmed; a repeat confirmation is a conflict, never a second
// credit.
func (s *DropService) ConfirmDropPaid(ctx context.Context, dropID uuid.UUID, recipientID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status models.DropStatus
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT status, amount FROM drops WHERE id = $1 FOR UPDATE`,
		dropID).Scan(&status, &amount)
	if err == sql.ErrNoRows {
		return ErrDropNotFound
	}
	if err != nil {
		return err
	}
	if status != models.DropStatusMatched {
		return ErrMatchConflict
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE drops SET status = 'paid', updated_at = NOW()
		WHERE id = $1 AND status = 'matched'`, dropID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrMatchConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, pending_balance, total_earned, total_withdrawn, updated_at)
		VALUES ($1, $2, $2, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			pending_balance = wallets.pending_balance + $2,
			total_earned = wallets.total_earned + $2,
			updated_at = NOW()`, recipientID, amount)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[DROP] Drop %s confirmed paid, credited %d to %s", dropID, amount, recipientID)
	s.audit.LogSettlement(dropID.String(), recipientID, amount, "CREDITED")
	return nil
}

// GenerateCollectQR builds a UPI collect payload for the user's payout
// destination, caches it briefly and returns the payload plus a base64 PNG.
func (s *DropService) GenerateCollectQR(ctx context.Context, userID, destination string) (string, string, error) {
	if !IsValidUPIDestination(destination) {
		return "", "", ErrInvalidDestination
	}

	qrData := map[string]any{
		"userId":      userID,
		"destination": destination,
		"timestamp":   time.Now().Unix(),
		"nonce":       s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	payload := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("collect_qr:%s", payload)
		if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
			return "", "", err
		}
	}

	qr, err := qrcode.New("upi://pay?pa="+destination, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())
	return payload, qrImage, nil
}

func (s *DropService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
