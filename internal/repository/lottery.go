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

// LotteryRepository reads the draw catalog. Lotteries are owned by the
// catalog service; Create exists for seeding and tests.
type LotteryRepository struct {
	db DBTX
}

// NewLotteryRepository creates a new LotteryRepository instance.
func NewLotteryRepository(db DBTX) *LotteryRepository {
	return &LotteryRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *LotteryRepository) WithTx(tx pgx.Tx) *LotteryRepository {
	return &LotteryRepository{db: tx}
}

const lotteryColumns = `id, name, draw_time, is_active,
	single_digit_price::text, single_digit_win_amount::text,
	double_digit_price::text, double_digit_win_amount::text,
	triple_digit_price::text, triple_digit_win_amount::text,
	triple_box_price::text, triple_box_win_amount::text,
	created_at, updated_at`

var priceColumns = [8]string{
	"single_digit_price", "single_digit_win_amount",
	"double_digit_price", "double_digit_win_amount",
	"triple_digit_price", "triple_digit_win_amount",
	"triple_box_price", "triple_box_win_amount",
}

// priceFields returns pointers to the price table in priceColumns order.
func priceFields(l *model.Lottery) [8]*decimal.Decimal {
	return [8]*decimal.Decimal{
		&l.SingleDigitPrice, &l.SingleDigitWinAmount,
		&l.DoubleDigitPrice, &l.DoubleDigitWinAmount,
		&l.TripleDigitPrice, &l.TripleDigitWinAmount,
		&l.TripleBoxPrice, &l.TripleBoxWinAmount,
	}
}

func scanLottery(row pgx.Row) (*model.Lottery, error) {
	var (
		l      model.Lottery
		prices [8]string
	)
	err := row.Scan(
		&l.ID, &l.Name, &l.DrawTime, &l.IsActive,
		&prices[0], &prices[1],
		&prices[2], &prices[3],
		&prices[4], &prices[5],
		&prices[6], &prices[7],
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for i, dst := range priceFields(&l) {
		if *dst, err = parseDecimal(priceColumns[i], prices[i]); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// Create inserts a lottery. A nil ID is replaced with a new one.
func (r *LotteryRepository) Create(ctx context.Context, l *model.Lottery) (*model.Lottery, error) {
	query := `
		INSERT INTO lotteries (id, name, draw_time, is_active,
			single_digit_price, single_digit_win_amount,
			double_digit_price, double_digit_win_amount,
			triple_digit_price, triple_digit_win_amount,
			triple_box_price, triple_box_win_amount,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4,
			$5::numeric, $6::numeric, $7::numeric, $8::numeric,
			$9::numeric, $10::numeric, $11::numeric, $12::numeric,
			NOW(), NOW())
		RETURNING ` + lotteryColumns

	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	args := []any{id, l.Name, l.DrawTime, l.IsActive}
	for _, p := range priceFields(l) {
		args = append(args, p.String())
	}

	created, err := scanLottery(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("failed to create lottery: %w", err)
	}
	return created, nil
}

// GetByID retrieves a lottery by ID.
func (r *LotteryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lottery, error) {
	return r.get(ctx, `SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1`, id)
}

// GetForShare retrieves a lottery holding a shared row lock. Checkouts take
// it so a concurrent result declaration waits for them to commit.
func (r *LotteryRepository) GetForShare(ctx context.Context, id uuid.UUID) (*model.Lottery, error) {
	return r.get(ctx, `SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1 FOR SHARE`, id)
}

// GetForUpdate retrieves a lottery holding an exclusive row lock.
func (r *LotteryRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Lottery, error) {
	return r.get(ctx, `SELECT `+lotteryColumns+` FROM lotteries WHERE id = $1 FOR UPDATE`, id)
}

func (r *LotteryRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.Lottery, error) {
	l, err := scanLottery(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLotteryNotFound
		}
		return nil, fmt.Errorf("failed to get lottery: %w", err)
	}
	return l, nil
}

// SetActive opens or closes betting on a lottery.
func (r *LotteryRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	const query = `UPDATE lotteries SET is_active = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update lottery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLotteryNotFound
	}
	return nil
}
