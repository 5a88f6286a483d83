package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
)

// TransactionRepository handles the append-only transaction log.
type TransactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

const transactionColumns = `id, user_id, type, amount::text, balance_after::text, reference_id, description, status, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		tx                   model.Transaction
		amount, balanceAfter string
	)
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&amount,
		&balanceAfter,
		&tx.ReferenceID,
		&tx.Description,
		&tx.Status,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tx.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if tx.BalanceAfter, err = parseDecimal("balance_after", balanceAfter); err != nil {
		return nil, err
	}
	return &tx, nil
}

func collectTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// Create appends a transaction row. ID and Status are filled in when empty.
func (r *TransactionRepository) Create(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	query := `
		INSERT INTO transactions (id, user_id, type, amount, balance_after, reference_id, description, status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, NOW())
		RETURNING ` + transactionColumns

	id := tx.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := tx.Status
	if status == "" {
		status = model.TxStatusCompleted
	}

	created, err := scanTransaction(r.db.QueryRow(ctx, query,
		id,
		tx.UserID,
		tx.Type,
		tx.Amount.String(),
		tx.BalanceAfter.String(),
		tx.ReferenceID,
		tx.Description,
		status,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return created, nil
}

// ListByUser retrieves a user's transactions, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return collectTransactions(rows)
}

// Chain retrieves every transaction of a user in the order they were written.
func (r *TransactionRepository) Chain(ctx context.Context, userID uuid.UUID) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction chain: %w", err)
	}
	return collectTransactions(rows)
}

// SumByUser returns the sum of all completed transaction amounts of a user.
func (r *TransactionRepository) SumByUser(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE user_id = $1 AND status = 'completed'`

	var sum string
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return parseDecimal("sum", sum)
}

// ListByReferences retrieves transactions of one type whose reference_id is
// one of refs.
func (r *TransactionRepository) ListByReferences(ctx context.Context, txType model.TxType, refs []uuid.UUID) ([]*model.Transaction, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.String()
	}

	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE type = $1 AND reference_id = ANY($2::uuid[])
		ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, txType, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions by reference: %w", err)
	}
	return collectTransactions(rows)
}
