// Package repository provides the PostgreSQL ledger store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Common errors for repository operations.
var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletExists           = errors.New("wallet already exists")
	ErrLotteryNotFound        = errors.New("lottery not found")
	ErrBetNotFound            = errors.New("bet not found")
	ErrResultNotFound         = errors.New("lottery result not found")
	ErrResultExists           = errors.New("lottery result already exists")
	ErrPaymentRequestNotFound = errors.New("payment request not found")
	// ErrStaleVersion means a conditional wallet update matched no row.
	ErrStaleVersion = errors.New("wallet version changed concurrently")
	// ErrNotPending means a conditional status update found the row already settled or processed.
	ErrNotPending = errors.New("row is no longer pending")
	// ErrSerialization means a transaction kept failing with serialization
	// errors or deadlocks until the retry budget ran out.
	ErrSerialization = errors.New("transaction retries exhausted")
)

// PostgreSQL error codes the store reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Store bundles the repositories over one pool and runs transactional units.
type Store struct {
	pool       *pgxpool.Pool
	maxRetries int

	Wallets      *WalletRepository
	Transactions *TransactionRepository
	Lotteries    *LotteryRepository
	Bets         *BetRepository
	Results      *ResultRepository
	Payments     *PaymentRepository
	Reports      *ReportRepository
}

// NewStore creates a Store. maxRetries bounds how many times InTx runs a unit
// that fails with a serialization error or deadlock.
func NewStore(pool *pgxpool.Pool, maxRetries int) *Store {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Store{
		pool:         pool,
		maxRetries:   maxRetries,
		Wallets:      NewWalletRepository(pool),
		Transactions: NewTransactionRepository(pool),
		Lotteries:    NewLotteryRepository(pool),
		Bets:         NewBetRepository(pool),
		Results:      NewResultRepository(pool),
		Payments:     NewPaymentRepository(pool),
		Reports:      NewReportRepository(pool),
	}
}

// Tx exposes the repositories bound to one database transaction.
type Tx struct {
	Wallets      *WalletRepository
	Transactions *TransactionRepository
	Lotteries    *LotteryRepository
	Bets         *BetRepository
	Results      *ResultRepository
	Payments     *PaymentRepository
}

// bind rebinds the store's repositories to tx.
func (s *Store) bind(tx pgx.Tx) *Tx {
	return &Tx{
		Wallets:      s.Wallets.WithTx(tx),
		Transactions: s.Transactions.WithTx(tx),
		Lotteries:    s.Lotteries.WithTx(tx),
		Bets:         s.Bets.WithTx(tx),
		Results:      s.Results.WithTx(tx),
		Payments:     s.Payments.WithTx(tx),
	}
}

// InTx runs fn inside a database transaction and commits if fn returns nil.
// Any error rolls back every write fn made. Serialization failures and
// deadlocks re-run fn from scratch; once the retry budget is spent the
// result wraps ErrSerialization.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Msg("Retrying ledger transaction")
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrSerialization, s.maxRetries, lastErr)
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.bind(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrStaleVersion) {
		return true
	}
	code := pgErrorCode(err)
	return code == pgSerializationFailure || code == pgDeadlockDetected
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

// parseDecimal parses a NUMERIC column selected as text.
func parseDecimal(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", column, s, err)
	}
	return d, nil
}

// parseNullDecimal parses a nullable NUMERIC column selected as text.
func parseNullDecimal(column string, s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(column, *s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
