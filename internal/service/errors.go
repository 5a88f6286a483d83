package service

import (
	"errors"
	"fmt"

	"lottery-ledger/internal/pkg/lock"
	"lottery-ledger/internal/repository"
)

// Error categories. Every service error wraps exactly one of them, so
// callers can branch on the category with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
)

// Wallet errors.
var (
	ErrInvalidAmount       = fmt.Errorf("%w: amount must be non-zero, at most 999999999999.99 and have at most two decimal places", ErrValidation)
	ErrInvalidTxType       = fmt.Errorf("%w: unknown transaction type", ErrValidation)
	ErrInsufficientFunds   = fmt.Errorf("%w: insufficient funds", ErrValidation)
	ErrBalanceLimit        = fmt.Errorf("%w: balance would exceed 999999999999.99", ErrValidation)
	ErrWalletNotFound      = fmt.Errorf("%w: wallet", ErrNotFound)
	ErrWalletExists        = fmt.Errorf("%w: wallet already exists", ErrConflict)
	ErrPersistenceConflict = fmt.Errorf("%w: concurrent update retries exhausted", ErrConflict)
)

// ErrInsufficientBalance is the name checkout and payment approval use for
// ErrInsufficientFunds.
var ErrInsufficientBalance = ErrInsufficientFunds

// Checkout errors.
var (
	ErrEmptyCart       = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrTooManyItems    = fmt.Errorf("%w: too many items in cart", ErrValidation)
	ErrInvalidBet      = fmt.Errorf("%w: invalid bet", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrInvalidPrice    = fmt.Errorf("%w: unit price and unit win must be positive with at most two decimal places", ErrValidation)
	ErrPriceMismatch   = fmt.Errorf("%w: price does not match the lottery price table", ErrValidation)
	ErrLotteryNotFound = fmt.Errorf("%w: lottery", ErrNotFound)
	ErrBettingClosed   = fmt.Errorf("%w: betting is closed for this lottery", ErrConflict)
	ErrBetNotFound     = fmt.Errorf("%w: bet", ErrNotFound)
	ErrBetNotPending   = fmt.Errorf("%w: bet is no longer pending", ErrConflict)
)

// Settlement errors.
var (
	ErrInvalidWinningNumber  = fmt.Errorf("%w: winning number must be exactly 3 digits", ErrValidation)
	ErrResultAlreadyDeclared = fmt.Errorf("%w: result already declared", ErrConflict)
	ErrResultNotFound        = fmt.Errorf("%w: lottery result", ErrNotFound)
)

// Payment errors.
var (
	ErrBelowMinimum           = fmt.Errorf("%w: amount is below the minimum", ErrValidation)
	ErrMissingReference       = fmt.Errorf("%w: payment reference is required", ErrValidation)
	ErrPaymentRequestNotFound = fmt.Errorf("%w: payment request", ErrNotFound)
	ErrAlreadyProcessed       = fmt.Errorf("%w: payment request already processed", ErrConflict)
)

// translate maps repository and lock errors onto service errors. Errors
// that already carry a service category pass through; anything else is a
// store failure and is joined with ErrPersistence, keeping the cause.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, repository.ErrWalletNotFound):
		return ErrWalletNotFound
	case errors.Is(err, repository.ErrWalletExists):
		return ErrWalletExists
	case errors.Is(err, repository.ErrLotteryNotFound):
		return ErrLotteryNotFound
	case errors.Is(err, repository.ErrBetNotFound):
		return ErrBetNotFound
	case errors.Is(err, repository.ErrResultNotFound):
		return ErrResultNotFound
	case errors.Is(err, repository.ErrResultExists):
		return ErrResultAlreadyDeclared
	case errors.Is(err, repository.ErrPaymentRequestNotFound):
		return ErrPaymentRequestNotFound
	case errors.Is(err, repository.ErrSerialization), errors.Is(err, lock.ErrLockTimeout):
		return fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
	}
	return errors.Join(ErrPersistence, err)
}
