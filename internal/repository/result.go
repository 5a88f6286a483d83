package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lottery-ledger/internal/model"
)

// ResultRepository handles declared draw results.
type ResultRepository struct {
	db DBTX
}

// NewResultRepository creates a new ResultRepository instance.
func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *ResultRepository) WithTx(tx pgx.Tx) *ResultRepository {
	return &ResultRepository{db: tx}
}

const resultColumns = `id, lottery_id, winning_number, digit_a, digit_b, digit_c, result_declared_at, created_by`

func scanResult(row pgx.Row) (*model.LotteryResult, error) {
	var res model.LotteryResult
	err := row.Scan(
		&res.ID,
		&res.LotteryID,
		&res.WinningNumber,
		&res.DigitA,
		&res.DigitB,
		&res.DigitC,
		&res.DeclaredAt,
		&res.DeclaredBy,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Create stores the result of a draw. A second result for the same lottery
// returns ErrResultExists.
func (r *ResultRepository) Create(ctx context.Context, res *model.LotteryResult) (*model.LotteryResult, error) {
	query := `
		INSERT INTO lottery_results (id, lottery_id, winning_number, digit_a, digit_b, digit_c, result_declared_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), $7)
		RETURNING ` + resultColumns

	id := res.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	created, err := scanResult(r.db.QueryRow(ctx, query,
		id,
		res.LotteryID,
		res.WinningNumber,
		res.DigitA,
		res.DigitB,
		res.DigitC,
		res.DeclaredBy,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrResultExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrLotteryNotFound
		}
		return nil, fmt.Errorf("failed to create lottery result: %w", err)
	}
	return created, nil
}

// GetByLottery retrieves the declared result of a draw.
func (r *ResultRepository) GetByLottery(ctx context.Context, lotteryID uuid.UUID) (*model.LotteryResult, error) {
	query := `SELECT ` + resultColumns + ` FROM lottery_results WHERE lottery_id = $1`

	res, err := scanResult(r.db.QueryRow(ctx, query, lotteryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get lottery result: %w", err)
	}
	return res, nil
}

// Exists reports whether a result has been declared for a draw.
func (r *ResultRepository) Exists(ctx context.Context, lotteryID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM lottery_results WHERE lottery_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, lotteryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check lottery result: %w", err)
	}
	return exists, nil
}
