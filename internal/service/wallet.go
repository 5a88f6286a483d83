// Package service implements the ledger operations: the wallet mutation
// primitive, checkout, settlement, payment approval and reports.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/lock"
	"lottery-ledger/internal/pkg/metrics"
	"lottery-ledger/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	moneyScale       = 2
)

// maxMoney is the largest amount a NUMERIC(14,2) column holds.
var maxMoney = decimal.RequireFromString("999999999999.99")

// Mutation is one signed balance change.
type Mutation struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Type        model.TxType
	ReferenceID *uuid.UUID
	Description string
}

// Reconciliation compares a wallet balance with its transaction log.
type Reconciliation struct {
	UserID    uuid.UUID
	Balance   decimal.Decimal
	LedgerSum decimal.Decimal
	Entries   int
	// BrokenAt is the first transaction whose balance_after does not equal
	// the running sum of the log up to and including it.
	BrokenAt *uuid.UUID
}

// Consistent reports whether the balance equals the ledger sum and every
// balance_after chains.
func (r *Reconciliation) Consistent() bool {
	return r.BrokenAt == nil && r.Balance.Equal(r.LedgerSum)
}

// WalletService is the only code path that changes a wallet balance.
//
// Every mutation for a user runs inside that user's keyed lock and inside
// one database transaction that row-locks the wallet, writes the new
// balance with a version check and appends the transaction row. Mutations
// for different users proceed in parallel.
type WalletService struct {
	store       *repository.Store
	locks       *lock.Keyed[uuid.UUID]
	lockTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(
	store *repository.Store,
	locks *lock.Keyed[uuid.UUID],
	lockTimeout time.Duration,
	m *metrics.Metrics,
) *WalletService {
	if locks == nil {
		locks = lock.New[uuid.UUID]()
	}
	return &WalletService{
		store:       store,
		locks:       locks,
		lockTimeout: lockTimeout,
		metrics:     m,
	}
}

// OpenWallet creates a zero-balance wallet for a newly registered user.
func (s *WalletService) OpenWallet(ctx context.Context, userID uuid.UUID) (*model.Wallet, error) {
	w, err := s.store.Wallets.Create(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	log.Info().Str("user_id", userID.String()).Msg("Wallet opened")
	return w, nil
}

// Balance returns the authoritative current balance.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	w, err := s.store.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, translate(err)
	}
	return w.Balance, nil
}

// History returns a user's transactions, newest first.
func (s *WalletService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Transaction, error) {
	txs, err := s.store.Transactions.ListByUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, translate(err)
	}
	return txs, nil
}

// ApplyDelta applies one signed balance change and records it.
// A debit that would take the balance below zero fails with
// ErrInsufficientFunds and leaves the wallet untouched.
func (s *WalletService) ApplyDelta(ctx context.Context, m Mutation) (*model.Transaction, error) {
	if err := validateMutation(m); err != nil {
		s.observe(m.Type, err)
		return nil, err
	}

	var tx *model.Transaction
	err := s.withUserLock(ctx, m.UserID, func() error {
		return s.store.InTx(ctx, func(rtx *repository.Tx) error {
			var err error
			tx, err = s.applyInTx(ctx, rtx, m)
			return err
		})
	})
	err = translate(err)
	s.observe(m.Type, err)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("user_id", m.UserID.String()).
		Str("type", string(m.Type)).
		Str("amount", m.Amount.String()).
		Str("balance_after", tx.BalanceAfter.String()).
		Msg("Wallet mutation applied")

	return tx, nil
}

// applyInTx is ApplyDelta bound to a caller's database transaction, so the
// caller can commit the balance change together with its own rows. The
// caller holds the user's lock.
func (s *WalletService) applyInTx(ctx context.Context, tx *repository.Tx, m Mutation) (*model.Transaction, error) {
	w, err := tx.Wallets.GetForUpdate(ctx, m.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := w.Balance.Add(m.Amount)
	if newBalance.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	if newBalance.GreaterThan(maxMoney) {
		return nil, ErrBalanceLimit
	}

	if _, err := tx.Wallets.UpdateBalance(ctx, m.UserID, w.Version, newBalance); err != nil {
		return nil, err
	}

	return tx.Transactions.Create(ctx, &model.Transaction{
		UserID:       m.UserID,
		Type:         m.Type,
		Amount:       m.Amount,
		BalanceAfter: newBalance,
		ReferenceID:  m.ReferenceID,
		Description:  m.Description,
		Status:       model.TxStatusCompleted,
	})
}

// Reconcile checks that the wallet balance equals the sum of the user's
// transactions and that every balance_after continues the running sum.
// The wallet row is locked while the log is read so no mutation lands
// between the two reads.
func (s *WalletService) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		w, err := tx.Wallets.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		chain, err := tx.Transactions.Chain(ctx, userID)
		if err != nil {
			return err
		}

		rec = &Reconciliation{UserID: userID, Balance: w.Balance, Entries: len(chain)}
		running := decimal.Zero
		for _, t := range chain {
			running = running.Add(t.Amount)
			if rec.BrokenAt == nil && !running.Equal(t.BalanceAfter) {
				id := t.ID
				rec.BrokenAt = &id
			}
		}
		rec.LedgerSum = running
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	if !rec.Consistent() {
		log.Error().
			Str("user_id", userID.String()).
			Str("balance", rec.Balance.String()).
			Str("ledger_sum", rec.LedgerSum.String()).
			Msg("Wallet does not reconcile with its transaction log")
	}
	return rec, nil
}

func (s *WalletService) withUserLock(ctx context.Context, userID uuid.UUID, fn func() error) error {
	return s.locks.WithLockContext(ctx, userID, s.lockTimeout, fn)
}

// observe counts a finished mutation by outcome.
func (s *WalletService) observe(txType model.TxType, err error) {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		result = metrics.ResultRejected
	default:
		result = metrics.ResultError
	}
	s.metrics.WalletMutation(string(txType), result)
}

func validateMutation(m Mutation) error {
	if !m.Type.Valid() {
		return ErrInvalidTxType
	}
	if !validMoney(m.Amount) || m.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// validMoney reports whether d has at most two decimal places and fits the
// ledger's amount columns.
func validMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(moneyScale)) && d.Abs().LessThanOrEqual(maxMoney)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
