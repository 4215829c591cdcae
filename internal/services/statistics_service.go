package services

import (
	"context"
	"database/sql"
	"log"
)

// StatisticsService recomputes per-user aggregate counters from the drops
// table. It is a derived read model: callers treat failures as best-effort.
type StatisticsService struct {
	db *sql.DB
}

func NewStatisticsService(db *sql.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

// UpdateUserStatistics recomputes totals and streak counters for every user
// with at least one drop.
func (s *StatisticsService) UpdateUserStatistics(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO user_statistics (user_id, total_drops, matched_drops, total_gifted, current_streak, last_matched_at, updated_at)
		SELECT
			sender_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('matched', 'paid')),
			COALESCE(SUM(amount) FILTER (WHERE status IN ('matched', 'paid')), 0),
			COUNT(DISTINCT DATE(updated_at)) FILTER (WHERE status IN ('matched', 'paid')
				AND updated_at > NOW() - INTERVAL '7 days'),
			MAX(updated_at) FILTER (WHERE status IN ('matched', 'paid')),
			NOW()
		FROM drops
		GROUP BY sender_id
		ON CONFLICT (user_id) DO UPDATE SET
			total_drops = EXCLUDED.total_drops,
			matched_drops = EXCLUDED.matched_drops,
			total_gifted = EXCLUDED.total_gifted,
			current_streak = EXCLUDED.current_streak,
			last_matched_at = EXCLUDED.last_matched_at,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return err
	}

	rowsAffected, _ := result.RowsAffected()
	log.Printf("[STATISTICS] Recomputed statistics for %d users", rowsAffected)
	return nil
}
