package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"github.com/giftdrop/backend/internal/config"
	"github.com/giftdrop/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// MatchingService pairs pending drops of equal amount from distinct
// senders. It holds no state between cycles; every transition is a
// conditional write so overlapping invocations cannot double-match a drop.
type MatchingService struct {
	db    *sql.DB
	redis *redis.Client
	stats *StatisticsService
	audit *AuditLogger
	cfg   *config.MatchingConfig

	// shuffle permutes each amount bracket before pairing. Replaced in
	// tests with a deterministic permutation.
	shuffle func(n int, swap func(i, j int))
}

func NewMatchingService(db *sql.DB, redisClient *redis.Client, cfg *config.MatchingConfig) *MatchingService {
	if cfg == nil {
		cfg = config.LoadMatchingConfig()
	}
	return &MatchingService{
		db:      db,
		redis:   redisClient,
		stats:   NewStatisticsService(db),
		audit:   NewAuditLogger(),
		cfg:     cfg,
		shuffle: rand.Shuffle,
	}
}

type pendingDrop struct {
	ID       uuid.UUID
	SenderID string
	Amount   int64
}

// RunCycle is the scheduler entry point: it takes the advisory cycle lock,
// runs one matching pass and, after a batch that matched anything, kicks the
// best-effort statistics recompute.
func (s *MatchingService) RunCycle(ctx context.Context) {
	if !s.acquireCycleLock(ctx) {
		log.Printf("[MATCHING] Cycle lock held elsewhere, skipping run")
		return
	}
	defer s.releaseCycleLock(ctx)

	matched, err := s.MatchPendingDrops(ctx)
	if err != nil {
		log.Printf("[MATCHING] Cycle failed: %v", err)
		return
	}

	if matched > 0 {
		if err := s.stats.UpdateUserStatistics(ctx); err != nil {
			// Best effort only: a failed recompute never rolls back matches.
			log.Printf("[MATCHING] Statistics update failed: %v", err)
		}
	}
}

// MatchPendingDrops runs one matching pass and returns the number of pairs
// successfully written. Brackets with fewer than two drops are skipped;
// an odd bracket always leaves exactly one drop pending.
func (s *MatchingService) MatchPendingDrops(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, amount FROM drops
		WHERE status = 'pending' AND matched_id IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	buckets := make(map[int64][]pendingDrop)
	var order []int64
	for rows.Next() {
		var d pendingDrop
		if err := rows.Scan(&d.ID, &d.SenderID, &d.Amount); err != nil {
			return 0, err
		}
		if _, ok := buckets[d.Amount]; !ok {
			order = append(order, d.Amount)
		}
		buckets[d.Amount] = append(buckets[d.Amount], d)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	matched := 0
	var events []models.MatchEvent
	for _, amount := range order {
		bucket := buckets[amount]
		if len(bucket) < 2 {
			continue
		}

		s.shuffle(len(bucket), func(i, j int) {
			bucket[i], bucket[j] = bucket[j], bucket[i]
		})

		consumed := make(map[uuid.UUID]bool)
		for i := 0; i+1 < len(bucket); i += 2 {
			if s.cfg.MaxPerCycle > 0 && matched >= s.cfg.MaxPerCycle {
				break
			}

			a, b := bucket[i], bucket[i+1]
			if consumed[a.ID] || consumed[b.ID] {
				continue
			}
			if a.SenderID == b.SenderID {
				// Both stay pending for a future cycle.
				continue
			}

			if err := s.matchPair(ctx, a, b); err != nil {
				log.Printf("[MATCHING] Pair %s/%s not matched: %v", a.ID, b.ID, err)
				continue
			}

			consumed[a.ID] = true
			consumed[b.ID] = true
			matched++
			s.audit.LogMatch(a.ID.String(), b.ID.String(), amount)
			now := time.Now()
			events = append(events,
				models.MatchEvent{DropID: a.ID, PartnerID: b.ID, SenderID: a.SenderID, Amount: amount, MatchedAt: now},
				models.MatchEvent{DropID: b.ID, PartnerID: a.ID, SenderID: b.SenderID, Amount: amount, MatchedAt: now},
			)
		}
	}

	if len(events) > 0 {
		s.queueMatchEvents(ctx, events)
	}

	log.Printf("[MATCHING] Cycle complete: %d pairs matched", matched)
	return matched, nil
}

// matchPair writes both sides of the pair in one transaction. Each update
// only applies while the drop is still pending, so a concurrent cycle that
// already consumed either drop makes this pair lose cleanly.
func (s *MatchingService) matchPair(ctx context.Context, a, b pendingDrop) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.markMatched(ctx, tx, a.ID, b.ID); err != nil {
		return err
	}
	if err := s.markMatched(ctx, tx, b.ID, a.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *MatchingService) markMatched(ctx context.Context, tx *sql.Tx, id, partnerID uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE drops
		SET status = 'matched', matched_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending' AND matched_id IS NULL`,
		partnerID, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrMatchConflict
	}
	return nil
}

func (s *MatchingService) queueMatchEvents(ctx context.Context, events []models.MatchEvent) {
	if s.redis == nil {
		return
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := s.redis.RPush(ctx, s.cfg.EventQueue, data).Err(); err != nil {
			log.Printf("[MATCHING] Failed to queue match event for %s: %v", event.DropID, err)
		}
	}
}

func (s *MatchingService) acquireCycleLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ok, err := s.redis.SetNX(ctx, s.cfg.LockKey, time.Now().Unix(), s.cfg.LockTTL).Result()
	if err != nil {
		log.Printf("[MATCHING] Cycle lock check failed, running anyway: %v", err)
		return true
	}
	return ok
}

func (s *MatchingService) releaseCycleLock(ctx context.Context) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, s.cfg.LockKey)
}
