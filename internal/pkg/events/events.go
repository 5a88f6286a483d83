// Package events publishes ledger notifications for downstream consumers.
// Events are informational: the ledger tables stay the source of truth and a
// failed publish never undoes a committed ledger change.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeResultDeclared   = "result.declared"
	TypePaymentProcessed = "payment.processed"
)

// Event is implemented by every published payload.
type Event interface {
	// EventType names the event for consumers.
	EventType() string
	// Key groups related events onto the same partition.
	Key() string
}

// ResultDeclared is emitted after a settlement pass settled at least one bet.
type ResultDeclared struct {
	LotteryID     uuid.UUID `json:"lottery_id"`
	WinningNumber string    `json:"winning_number"`
	Settled       int       `json:"settled"`
	Won           int       `json:"won"`
	Lost          int       `json:"lost"`
	TotalPaid     string    `json:"total_paid"`
	Resumed       bool      `json:"resumed"`
	At            time.Time `json:"at"`
}

func (ResultDeclared) EventType() string { return TypeResultDeclared }

func (e ResultDeclared) Key() string { return e.LotteryID.String() }

// PaymentProcessed is emitted when a payment request is approved or rejected.
type PaymentProcessed struct {
	RequestID   uuid.UUID `json:"request_id"`
	UserID      uuid.UUID `json:"user_id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Decision    string    `json:"decision"`
	ProcessedBy uuid.UUID `json:"processed_by"`
	At          time.Time `json:"at"`
}

func (PaymentProcessed) EventType() string { return TypePaymentProcessed }

func (e PaymentProcessed) Key() string { return e.UserID.String() }

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. It is used when kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
