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

// WalletRepository handles wallet persistence.
// Balance writes are only reachable through UpdateBalance, which the wallet
// mutation primitive calls with the version it read under a row lock.
type WalletRepository struct {
	db DBTX
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(db DBTX) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *WalletRepository) WithTx(tx pgx.Tx) *WalletRepository {
	return &WalletRepository{db: tx}
}

const walletColumns = `user_id, balance::text, version, created_at, updated_at`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var (
		w       model.Wallet
		balance string
	)
	if err := row.Scan(&w.UserID, &balance, &w.Version, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := parseDecimal("balance", balance)
	if err != nil {
		return nil, err
	}
	w.Balance = d
	return &w, nil
}

// Create opens a zero-balance wallet for userID.
func (r *WalletRepository) Create(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	query := `
		INSERT INTO wallets (user_id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 0, NOW(), NOW())
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrWalletExists
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return w, nil
}

// GetByUserID retrieves a wallet without locking it.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// GetForUpdate retrieves a wallet and holds its row lock until the
// surrounding transaction ends. It must be called inside a transaction.
func (r *WalletRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}
	return w, nil
}

// UpdateBalance writes a new balance if the wallet is still at
// expectedVersion and returns the updated row. A mismatch returns
// ErrStaleVersion.
func (r *WalletRepository) UpdateBalance(ctx context.Context, userID uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (*model.Wallet, error) {
	query := `
		UPDATE wallets
		SET balance = $3::numeric, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND version = $2
		RETURNING ` + walletColumns

	w, err := scanWallet(r.db.QueryRow(ctx, query, userID, expectedVersion, newBalance.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleVersion
		}
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return w, nil
}

// Exists checks if a wallet exists for userID.
func (r *WalletRepository) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM wallets WHERE user_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check wallet existence: %w", err)
	}
	return exists, nil
}
