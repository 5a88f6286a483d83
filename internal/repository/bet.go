package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
)

// BetRepository handles wager persistence.
type BetRepository struct {
	db DBTX
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(db DBTX) *BetRepository {
	return &BetRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *BetRepository) WithTx(tx pgx.Tx) *BetRepository {
	return &BetRepository{db: tx}
}

const betColumns = `id, user_id, lottery_id, bet_type, position, selected_number, is_box, quantity,
	unit_price::text, total_amount::text, potential_win_amount::text, win_amount::text,
	status, placed_at, settled_at`

func scanBet(row pgx.Row) (*model.Bet, error) {
	var (
		b                           model.Bet
		unitPrice, total, potential string
		winAmount                   *string
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.LotteryID,
		&b.BetType,
		&b.Position,
		&b.SelectedNumber,
		&b.IsBox,
		&b.Quantity,
		&unitPrice,
		&total,
		&potential,
		&winAmount,
		&b.Status,
		&b.PlacedAt,
		&b.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if b.UnitPrice, err = parseDecimal("unit_price", unitPrice); err != nil {
		return nil, err
	}
	if b.TotalAmount, err = parseDecimal("total_amount", total); err != nil {
		return nil, err
	}
	if b.PotentialWinAmount, err = parseDecimal("potential_win_amount", potential); err != nil {
		return nil, err
	}
	if b.WinAmount, err = parseNullDecimal("win_amount", winAmount); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBets(rows pgx.Rows) ([]*model.Bet, error) {
	defer rows.Close()

	var bets []*model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}

// InsertBatch inserts bets as pending in one round trip and returns the
// stored rows in input order. Bets without an ID get a new one.
func (r *BetRepository) InsertBatch(ctx context.Context, bets []*model.Bet) ([]*model.Bet, error) {
	query := `
		INSERT INTO bets (id, user_id, lottery_id, bet_type, position, selected_number, is_box, quantity,
			unit_price, total_amount, potential_win_amount, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, 'pending', NOW())
		RETURNING ` + betColumns

	batch := &pgx.Batch{}
	for _, b := range bets {
		id := b.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query,
			id,
			b.UserID,
			b.LotteryID,
			b.BetType,
			b.Position,
			b.SelectedNumber,
			b.IsBox,
			b.Quantity,
			b.UnitPrice.String(),
			b.TotalAmount.String(),
			b.PotentialWinAmount.String(),
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	stored := make([]*model.Bet, 0, len(bets))
	for range bets {
		b, err := scanBet(br.QueryRow())
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, fmt.Errorf("failed to insert bet: %w", ErrWalletNotFound)
			}
			return nil, fmt.Errorf("failed to insert bet: %w", err)
		}
		stored = append(stored, b)
	}

	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert bets: %w", err)
	}
	return stored, nil
}

// GetByID retrieves a bet by ID.
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Bet, error) {
	return r.get(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
}

// GetForUpdate retrieves a bet holding its row lock.
func (r *BetRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Bet, error) {
	return r.get(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, id)
}

func (r *BetRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.Bet, error) {
	b, err := scanBet(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return b, nil
}

// ListPendingByLottery retrieves the pending bets of a draw in placement order.
func (r *BetRepository) ListPendingByLottery(ctx context.Context, lotteryID uuid.UUID) ([]*model.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE lottery_id = $1 AND status = 'pending'
		ORDER BY placed_at, id`

	rows, err := r.db.Query(ctx, query, lotteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending bets: %w", err)
	}
	return collectBets(rows)
}

// ListByUser retrieves a user's bets, newest first.
func (r *BetRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1
		ORDER BY placed_at DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bets: %w", err)
	}
	return collectBets(rows)
}

// ListByLottery retrieves every bet of a draw in placement order.
func (r *BetRepository) ListByLottery(ctx context.Context, lotteryID uuid.UUID) ([]*model.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE lottery_id = $1
		ORDER BY placed_at, id`

	rows, err := r.db.Query(ctx, query, lotteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lottery bets: %w", err)
	}
	return collectBets(rows)
}

// MarkSettled moves a pending bet to won or lost and records its win
// amount, zero for losers. A bet that is no longer pending returns
// ErrNotPending and is left untouched.
func (r *BetRepository) MarkSettled(ctx context.Context, id uuid.UUID, status model.BetStatus, winAmount decimal.Decimal) (*model.Bet, error) {
	if status != model.BetStatusWon {
		winAmount = decimal.Zero
	}

	query := `
		UPDATE bets
		SET status = $2, win_amount = $3::numeric, settled_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + betColumns

	b, err := scanBet(r.db.QueryRow(ctx, query, id, status, winAmount.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("failed to settle bet: %w", err)
	}
	return b, nil
}

// Cancel moves a pending bet to cancelled.
func (r *BetRepository) Cancel(ctx context.Context, id uuid.UUID) (*model.Bet, error) {
	query := `
		UPDATE bets
		SET status = 'cancelled', settled_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + betColumns

	b, err := scanBet(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("failed to cancel bet: %w", err)
	}
	return b, nil
}

// LotteriesPendingSettlement returns draws that have a declared result but
// still carry pending bets, i.e. settlements that were interrupted.
func (r *BetRepository) LotteriesPendingSettlement(ctx context.Context) ([]uuid.UUID, error) {
	const query = `
		SELECT DISTINCT b.lottery_id
		FROM bets b
		JOIN lottery_results lr ON lr.lottery_id = b.lottery_id
		WHERE b.status = 'pending'`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find unsettled lotteries: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan lottery id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lottery ids: %w", err)
	}
	return ids, nil
}
