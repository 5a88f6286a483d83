// Package model defines the data models for the lottery ledger.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds a user's monetary balance.
// Balance is only ever changed by the wallet mutation primitive; Version
// increments on every write and guards the conditional update.
type Wallet struct {
	UserID    uuid.UUID       `db:"user_id"`
	Balance   decimal.Decimal `db:"balance"`
	Version   int64           `db:"version"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Transaction is an immutable ledger entry recording a balance change.
type Transaction struct {
	ID           uuid.UUID       `db:"id"`
	UserID       uuid.UUID       `db:"user_id"`
	Type         TxType          `db:"type"`
	Amount       decimal.Decimal `db:"amount"`
	BalanceAfter decimal.Decimal `db:"balance_after"`
	ReferenceID  *uuid.UUID      `db:"reference_id"`
	Description  string          `db:"description"`
	Status       TxStatus        `db:"status"`
	CreatedAt    time.Time       `db:"created_at"`
}

// TxType categorizes balance changes.
type TxType string

const (
	TxTypeDeposit    TxType = "deposit"    // Approved deposit request
	TxTypeWithdrawal TxType = "withdrawal" // Approved withdrawal request
	TxTypeBetPlaced  TxType = "bet_placed" // Checkout debit
	TxTypeBetWon     TxType = "bet_won"    // Settlement payout
	TxTypeBetRefund  TxType = "bet_refund" // Refund of a voided wager
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxTypeDeposit, TxTypeWithdrawal, TxTypeBetPlaced, TxTypeBetWon, TxTypeBetRefund:
		return true
	}
	return false
}

// TxStatus is the lifecycle state of a transaction row.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusCancelled TxStatus = "cancelled"
)

// Lottery is a scheduled draw with its price table.
// The catalog itself is managed elsewhere; the ledger only reads it.
type Lottery struct {
	ID                   uuid.UUID       `db:"id"`
	Name                 string          `db:"name"`
	DrawTime             time.Time       `db:"draw_time"`
	IsActive             bool            `db:"is_active"`
	SingleDigitPrice     decimal.Decimal `db:"single_digit_price"`
	SingleDigitWinAmount decimal.Decimal `db:"single_digit_win_amount"`
	DoubleDigitPrice     decimal.Decimal `db:"double_digit_price"`
	DoubleDigitWinAmount decimal.Decimal `db:"double_digit_win_amount"`
	TripleDigitPrice     decimal.Decimal `db:"triple_digit_price"`
	TripleDigitWinAmount decimal.Decimal `db:"triple_digit_win_amount"`
	TripleBoxPrice       decimal.Decimal `db:"triple_box_price"`
	TripleBoxWinAmount   decimal.Decimal `db:"triple_box_win_amount"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

// Bet is a wager on a digit pattern for a specific draw.
// PotentialWinAmount already includes the quantity: it is what a winning
// bet pays out in total.
type Bet struct {
	ID                 uuid.UUID        `db:"id"`
	UserID             uuid.UUID        `db:"user_id"`
	LotteryID          uuid.UUID        `db:"lottery_id"`
	BetType            BetType          `db:"bet_type"`
	Position           *string          `db:"position"`
	SelectedNumber     string           `db:"selected_number"`
	IsBox              bool             `db:"is_box"`
	Quantity           int              `db:"quantity"`
	UnitPrice          decimal.Decimal  `db:"unit_price"`
	TotalAmount        decimal.Decimal  `db:"total_amount"`
	PotentialWinAmount decimal.Decimal  `db:"potential_win_amount"`
	WinAmount          *decimal.Decimal `db:"win_amount"`
	Status             BetStatus        `db:"status"`
	PlacedAt           time.Time        `db:"placed_at"`
	SettledAt          *time.Time       `db:"settled_at"`
}

// PositionString returns the bet position or "" for triple bets.
func (b *Bet) PositionString() string {
	if b.Position == nil {
		return ""
	}
	return *b.Position
}

// BetType is the number of digits a wager covers.
type BetType string

const (
	BetTypeSingle BetType = "single"
	BetTypeDouble BetType = "double"
	BetTypeTriple BetType = "triple"
)

// BetStatus is the lifecycle state of a wager.
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"
	BetStatusWon       BetStatus = "won"
	BetStatusLost      BetStatus = "lost"
	BetStatusCancelled BetStatus = "cancelled"
)

// LotteryResult is the declared outcome of a draw. At most one exists per lottery.
type LotteryResult struct {
	ID            uuid.UUID  `db:"id"`
	LotteryID     uuid.UUID  `db:"lottery_id"`
	WinningNumber string     `db:"winning_number"`
	DigitA        string     `db:"digit_a"`
	DigitB        string     `db:"digit_b"`
	DigitC        string     `db:"digit_c"`
	DeclaredAt    time.Time  `db:"result_declared_at"`
	DeclaredBy    *uuid.UUID `db:"created_by"`
}

// PaymentRequest is a deposit or withdrawal awaiting administrator approval.
type PaymentRequest struct {
	ID           uuid.UUID       `db:"id"`
	UserID       uuid.UUID       `db:"user_id"`
	Type         PaymentType     `db:"type"`
	Amount       decimal.Decimal `db:"amount"`
	Status       PaymentStatus   `db:"status"`
	UPIID        *string         `db:"upi_id"`
	UPIReference *string         `db:"upi_reference"`
	AdminNotes   *string         `db:"admin_notes"`
	RequestedAt  time.Time       `db:"requested_at"`
	ProcessedBy  *uuid.UUID      `db:"processed_by"`
	ProcessedAt  *time.Time      `db:"processed_at"`
}

// PaymentType is the direction of a payment request.
type PaymentType string

const (
	PaymentTypeDeposit    PaymentType = "deposit"
	PaymentTypeWithdrawal PaymentType = "withdrawal"
)

// TxType returns the transaction type recorded when the request is approved.
func (p PaymentType) TxType() TxType {
	if p == PaymentTypeWithdrawal {
		return TxTypeWithdrawal
	}
	return TxTypeDeposit
}

// PaymentStatus is the lifecycle state of a payment request.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// DailyResult is a user's net game result for one day, used by reports.
type DailyResult struct {
	UserID    uuid.UUID       `db:"user_id"`
	NetResult decimal.Decimal `db:"net_result"`
}

// Summary aggregates ledger-wide figures for the admin dashboard.
type Summary struct {
	TotalWagered     decimal.Decimal
	TotalPaidOut     decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	PendingBets      int64
	WonBets          int64
	LostBets         int64
	CancelledBets    int64
}

// GameTransactionTypes returns the transaction types that count towards a
// user's net game result.
func GameTransactionTypes() []TxType {
	return []TxType{TxTypeBetPlaced, TxTypeBetWon, TxTypeBetRefund}
}
