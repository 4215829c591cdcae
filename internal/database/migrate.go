package database

import (
	"database/sql"
	"log"
)

const schema = `
CREATE TABLE IF NOT EXISTS drops (
	id UUID PRIMARY KEY,
	sender_id TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount > 0),
	message TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	matched_id UUID REFERENCES drops(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_drops_pending ON drops (amount, created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS wallets (
	user_id TEXT PRIMARY KEY,
	pending_balance BIGINT NOT NULL DEFAULT 0 CHECK (pending_balance >= 0),
	total_earned BIGINT NOT NULL DEFAULT 0,
	total_withdrawn BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS withdrawals (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount > 0),
	destination TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	payout_ref TEXT,
	failure_reason TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_user ON withdrawals (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_statistics (
	user_id TEXT PRIMARY KEY,
	total_drops BIGINT NOT NULL DEFAULT 0,
	matched_drops BIGINT NOT NULL DEFAULT 0,
	total_gifted BIGINT NOT NULL DEFAULT 0,
	current_streak INT NOT NULL DEFAULT 0,
	last_matched_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	log.Println("Migrations completed")
	return nil
}
