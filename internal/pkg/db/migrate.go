package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is the subset of pgxpool.Pool / pgx.Tx needed to apply migrations.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

// migrations are applied in order; every statement is idempotent.
var migrations = []migration{
	{"lotteries table", `
		CREATE TABLE IF NOT EXISTS lotteries (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			draw_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			single_digit_price NUMERIC(14,2) NOT NULL,
			single_digit_win_amount NUMERIC(14,2) NOT NULL,
			double_digit_price NUMERIC(14,2) NOT NULL,
			double_digit_win_amount NUMERIC(14,2) NOT NULL,
			triple_digit_price NUMERIC(14,2) NOT NULL,
			triple_digit_win_amount NUMERIC(14,2) NOT NULL,
			triple_box_price NUMERIC(14,2) NOT NULL,
			triple_box_win_amount NUMERIC(14,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_lotteries_draw_time ON lotteries(draw_time DESC);
	`},
	{"wallets table", `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id UUID PRIMARY KEY,
			balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"transactions table", `
		CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES wallets(user_id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL CHECK (type IN ('deposit', 'withdrawal', 'bet_placed', 'bet_won', 'bet_refund')),
			amount NUMERIC(14,2) NOT NULL,
			balance_after NUMERIC(14,2) NOT NULL,
			reference_id UUID,
			description TEXT NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'completed' CHECK (status IN ('pending', 'completed', 'failed', 'cancelled')),
			seq BIGSERIAL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_seq ON transactions(user_id, seq);
		CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(type, reference_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
	`},
	{"bets table", `
		CREATE TABLE IF NOT EXISTS bets (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES wallets(user_id) ON DELETE CASCADE,
			lottery_id UUID NOT NULL REFERENCES lotteries(id),
			bet_type VARCHAR(10) NOT NULL CHECK (bet_type IN ('single', 'double', 'triple')),
			position VARCHAR(2),
			selected_number VARCHAR(3) NOT NULL,
			is_box BOOLEAN NOT NULL DEFAULT FALSE,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			unit_price NUMERIC(14,2) NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL,
			potential_win_amount NUMERIC(14,2) NOT NULL,
			win_amount NUMERIC(14,2),
			status VARCHAR(10) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'won', 'lost', 'cancelled')),
			placed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			settled_at TIMESTAMPTZ,
			CHECK ((bet_type = 'triple') = (position IS NULL))
		);
		CREATE INDEX IF NOT EXISTS idx_bets_lottery_status ON bets(lottery_id, status);
		CREATE INDEX IF NOT EXISTS idx_bets_user_placed ON bets(user_id, placed_at DESC);
	`},
	{"lottery_results table", `
		CREATE TABLE IF NOT EXISTS lottery_results (
			id UUID PRIMARY KEY,
			lottery_id UUID NOT NULL UNIQUE REFERENCES lotteries(id),
			winning_number CHAR(3) NOT NULL CHECK (winning_number ~ '^[0-9]{3}$'),
			digit_a CHAR(1) NOT NULL,
			digit_b CHAR(1) NOT NULL,
			digit_c CHAR(1) NOT NULL,
			result_declared_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by UUID
		);
	`},
	{"payment_requests table", `
		CREATE TABLE IF NOT EXISTS payment_requests (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES wallets(user_id) ON DELETE CASCADE,
			type VARCHAR(20) NOT NULL CHECK (type IN ('deposit', 'withdrawal')),
			amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			upi_id TEXT,
			upi_reference TEXT,
			admin_notes TEXT,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_by UUID,
			processed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests(status, requested_at DESC);
		CREATE INDEX IF NOT EXISTS idx_payment_requests_user ON payment_requests(user_id, requested_at DESC);
	`},
}

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("migration", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
