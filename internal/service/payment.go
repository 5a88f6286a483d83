package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/events"
	"lottery-ledger/internal/pkg/metrics"
	"lottery-ledger/internal/repository"
)

// PaymentService runs the deposit/withdrawal approval workflow.
// A request moves once from pending to approved or rejected; approval is
// the only step with a wallet effect.
type PaymentService struct {
	store         *repository.Store
	wallets       *WalletService
	publisher     events.Publisher
	metrics       *metrics.Metrics
	minDeposit    decimal.Decimal
	minWithdrawal decimal.Decimal
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(
	store *repository.Store,
	wallets *WalletService,
	minDeposit, minWithdrawal decimal.Decimal,
	publisher events.Publisher,
	m *metrics.Metrics,
) *PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PaymentService{
		store:         store,
		wallets:       wallets,
		publisher:     publisher,
		metrics:       m,
		minDeposit:    minDeposit,
		minWithdrawal: minWithdrawal,
	}
}

// RequestDeposit files a pending deposit. upiReference is the payer's
// transfer reference the approver checks against the bank statement.
func (s *PaymentService) RequestDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, upiReference string) (*model.PaymentRequest, error) {
	if err := checkRequestAmount(amount, s.minDeposit); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(upiReference)
	if ref == "" {
		return nil, ErrMissingReference
	}

	return s.create(ctx, &model.PaymentRequest{
		UserID:       userID,
		Type:         model.PaymentTypeDeposit,
		Amount:       amount,
		UPIReference: &ref,
	})
}

// RequestWithdrawal files a pending withdrawal to upiID. The amount may not
// exceed the balance at request time; approval checks the balance again.
func (s *PaymentService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, upiID string) (*model.PaymentRequest, error) {
	if err := checkRequestAmount(amount, s.minWithdrawal); err != nil {
		return nil, err
	}
	dest := strings.TrimSpace(upiID)
	if dest == "" {
		return nil, ErrMissingReference
	}

	balance, err := s.wallets.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, ErrInsufficientBalance
	}

	return s.create(ctx, &model.PaymentRequest{
		UserID: userID,
		Type:   model.PaymentTypeWithdrawal,
		Amount: amount,
		UPIID:  &dest,
	})
}

func (s *PaymentService) create(ctx context.Context, req *model.PaymentRequest) (*model.PaymentRequest, error) {
	created, err := s.store.Payments.Create(ctx, req)
	if err != nil {
		return nil, translate(err)
	}

	log.Info().
		Str("request_id", created.ID.String()).
		Str("user_id", created.UserID.String()).
		Str("type", string(created.Type)).
		Str("amount", created.Amount.String()).
		Msg("Payment request created")

	return created, nil
}

// Approve applies a pending request to the wallet and marks it approved.
// A withdrawal is checked against the live balance; if it no longer fits
// the approval fails with ErrInsufficientBalance and the request stays
// pending. Processed requests fail with ErrAlreadyProcessed.
func (s *PaymentService) Approve(ctx context.Context, requestID, approverID uuid.UUID) (*model.PaymentRequest, error) {
	req, err := s.store.Payments.GetByID(ctx, requestID)
	if err != nil {
		return nil, translate(err)
	}

	var approved *model.PaymentRequest
	err = s.wallets.withUserLock(ctx, req.UserID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Tx) error {
			current, err := tx.Payments.GetForUpdate(ctx, requestID)
			if err != nil {
				return err
			}
			if current.Status != model.PaymentStatusPending {
				return ErrAlreadyProcessed
			}

			amount := current.Amount
			if current.Type == model.PaymentTypeWithdrawal {
				amount = amount.Neg()
			}
			if _, err := s.wallets.applyInTx(ctx, tx, Mutation{
				UserID:      current.UserID,
				Amount:      amount,
				Type:        current.Type.TxType(),
				ReferenceID: &current.ID,
				Description: fmt.Sprintf("%s approved", current.Type),
			}); err != nil {
				return err
			}

			approved, err = tx.Payments.MarkProcessed(ctx, requestID, model.PaymentStatusApproved, approverID, nil)
			return err
		})
	})
	err = translateProcessing(err)
	s.wallets.observe(req.Type.TxType(), err)
	if err != nil {
		return nil, err
	}

	s.processed(ctx, approved)
	return approved, nil
}

// Reject marks a pending request rejected without touching the wallet.
func (s *PaymentService) Reject(ctx context.Context, requestID, approverID uuid.UUID, notes string) (*model.PaymentRequest, error) {
	var adminNotes *string
	if n := strings.TrimSpace(notes); n != "" {
		adminNotes = &n
	}

	var rejected *model.PaymentRequest
	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		current, err := tx.Payments.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if current.Status != model.PaymentStatusPending {
			return ErrAlreadyProcessed
		}
		rejected, err = tx.Payments.MarkProcessed(ctx, requestID, model.PaymentStatusRejected, approverID, adminNotes)
		return err
	})
	if err = translateProcessing(err); err != nil {
		return nil, err
	}

	s.processed(ctx, rejected)
	return rejected, nil
}

// Pending returns requests awaiting a decision, oldest first.
func (s *PaymentService) Pending(ctx context.Context, limit int) ([]*model.PaymentRequest, error) {
	reqs, err := s.store.Payments.ListByStatus(ctx, model.PaymentStatusPending, normalizeLimit(limit))
	if err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

// UserRequests returns a user's requests, newest first.
func (s *PaymentService) UserRequests(ctx context.Context, userID uuid.UUID, limit int) ([]*model.PaymentRequest, error) {
	reqs, err := s.store.Payments.ListByUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

func (s *PaymentService) processed(ctx context.Context, req *model.PaymentRequest) {
	s.metrics.PaymentProcessed(string(req.Type), string(req.Status))

	var by uuid.UUID
	if req.ProcessedBy != nil {
		by = *req.ProcessedBy
	}

	log.Info().
		Str("request_id", req.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("type", string(req.Type)).
		Str("amount", req.Amount.String()).
		Str("decision", string(req.Status)).
		Str("processed_by", by.String()).
		Msg("Payment request processed")

	err := s.publisher.Publish(ctx, events.PaymentProcessed{
		RequestID:   req.ID,
		UserID:      req.UserID,
		Type:        string(req.Type),
		Amount:      req.Amount.String(),
		Decision:    string(req.Status),
		ProcessedBy: by,
		At:          time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.ID.String()).Msg("Failed to publish payment event")
	}
}

func translateProcessing(err error) error {
	if errors.Is(err, repository.ErrNotPending) {
		return ErrAlreadyProcessed
	}
	return translate(err)
}

func checkRequestAmount(amount, minimum decimal.Decimal) error {
	if !positiveMoney(amount) {
		return ErrInvalidAmount
	}
	if amount.LessThan(minimum) {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinimum, amount, minimum)
	}
	return nil
}
