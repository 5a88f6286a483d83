package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/config"
	"lottery-ledger/internal/game/lottery"
	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/metrics"
	"lottery-ledger/internal/repository"
)

// CheckoutItem is one line of a bet cart. UnitPrice and UnitWin are the
// per-unit stake and payout the caller quoted.
type CheckoutItem struct {
	BetType   model.BetType
	Position  string
	Number    string
	IsBox     bool
	Quantity  int
	UnitPrice decimal.Decimal
	UnitWin   decimal.Decimal
}

// Receipt is the outcome of a successful checkout.
type Receipt struct {
	TransactionID uuid.UUID
	Bets          []*model.Bet
	Total         decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// BetService places and voids wagers.
type BetService struct {
	store         *repository.Store
	wallets       *WalletService
	maxItems      int
	enforcePrices bool
	metrics       *metrics.Metrics
}

// NewBetService creates a new BetService instance.
func NewBetService(
	store *repository.Store,
	wallets *WalletService,
	cfg config.CheckoutConfig,
	m *metrics.Metrics,
) *BetService {
	return &BetService{
		store:         store,
		wallets:       wallets,
		maxItems:      cfg.MaxItems,
		enforcePrices: cfg.EnforcePriceTable,
		metrics:       m,
	}
}

// PlaceBets validates a cart, inserts one pending bet per item and debits
// the cart total once. The bets and the debit commit together or not at
// all; an insufficient balance fails with ErrInsufficientBalance and writes
// nothing.
func (s *BetService) PlaceBets(ctx context.Context, userID, lotteryID uuid.UUID, items []CheckoutItem) (*Receipt, error) {
	bets, total, err := s.buildBets(userID, lotteryID, items)
	if err != nil {
		return nil, err
	}

	var receipt *Receipt
	err = s.wallets.withUserLock(ctx, userID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Tx) error {
			l, err := tx.Lotteries.GetForShare(ctx, lotteryID)
			if err != nil {
				return err
			}
			if err := s.checkOpen(ctx, tx, l); err != nil {
				return err
			}
			if s.enforcePrices {
				if err := checkPrices(l, items); err != nil {
					return err
				}
			}

			ref := bets[0].ID
			debit, err := s.wallets.applyInTx(ctx, tx, Mutation{
				UserID:      userID,
				Amount:      total.Neg(),
				Type:        model.TxTypeBetPlaced,
				ReferenceID: &ref,
				Description: fmt.Sprintf("Placed %d bet(s) on %s", len(bets), l.Name),
			})
			if err != nil {
				return err
			}

			stored, err := tx.Bets.InsertBatch(ctx, bets)
			if err != nil {
				return err
			}

			receipt = &Receipt{
				TransactionID: debit.ID,
				Bets:          stored,
				Total:         total,
				BalanceAfter:  debit.BalanceAfter,
			}
			return nil
		})
	})
	err = translate(err)
	s.wallets.observe(model.TxTypeBetPlaced, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("lottery_id", lotteryID.String()).
		Int("bets", len(receipt.Bets)).
		Str("total", total.String()).
		Msg("Bets placed")

	return receipt, nil
}

// buildBets validates every cart item and turns it into a pending bet row.
// Nothing is read or written before the whole cart is valid.
func (s *BetService) buildBets(userID, lotteryID uuid.UUID, items []CheckoutItem) ([]*model.Bet, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyCart
	}
	if s.maxItems > 0 && len(items) > s.maxItems {
		return nil, decimal.Zero, fmt.Errorf("%w: %d items, limit %d", ErrTooManyItems, len(items), s.maxItems)
	}

	bets := make([]*model.Bet, len(items))
	total := decimal.Zero
	for i, item := range items {
		if err := lottery.ValidateSelection(item.BetType, item.Position, item.Number, item.IsBox); err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d: %w", ErrInvalidBet, i+1, err)
		}
		if item.Quantity < 1 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d", ErrInvalidQuantity, i+1)
		}
		if !positiveMoney(item.UnitPrice) || !positiveMoney(item.UnitWin) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d", ErrInvalidPrice, i+1)
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		bet := &model.Bet{
			ID:                 uuid.New(),
			UserID:             userID,
			LotteryID:          lotteryID,
			BetType:            item.BetType,
			SelectedNumber:     item.Number,
			IsBox:              item.IsBox,
			Quantity:           item.Quantity,
			UnitPrice:          item.UnitPrice,
			TotalAmount:        item.UnitPrice.Mul(qty),
			PotentialWinAmount: item.UnitWin.Mul(qty),
			Status:             model.BetStatusPending,
		}
		if !validMoney(bet.TotalAmount) || !validMoney(bet.PotentialWinAmount) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d exceeds the amount limit", ErrInvalidPrice, i+1)
		}
		if item.Position != "" {
			pos := item.Position
			bet.Position = &pos
		}
		bets[i] = bet
		total = total.Add(bet.TotalAmount)
	}
	if !validMoney(total) {
		return nil, decimal.Zero, fmt.Errorf("%w: cart total %s exceeds the amount limit", ErrInvalidPrice, total)
	}
	return bets, total, nil
}

// checkOpen rejects checkouts for inactive lotteries and for draws whose
// result is already declared. The caller holds the lottery row lock, so a
// declaration cannot slip in before the bets commit.
func (s *BetService) checkOpen(ctx context.Context, tx *repository.Tx, l *model.Lottery) error {
	if !l.IsActive {
		return ErrBettingClosed
	}
	declared, err := tx.Results.Exists(ctx, l.ID)
	if err != nil {
		return err
	}
	if declared {
		return ErrBettingClosed
	}
	return nil
}

func checkPrices(l *model.Lottery, items []CheckoutItem) error {
	for i, item := range items {
		price, win := lottery.Price(l, item.BetType, item.IsBox)
		if !item.UnitPrice.Equal(price) || !item.UnitWin.Equal(win) {
			return fmt.Errorf("%w: item %d quoted %s/%s, table has %s/%s",
				ErrPriceMismatch, i+1, item.UnitPrice, item.UnitWin, price, win)
		}
	}
	return nil
}

// CancelBet voids a pending bet and refunds its stake as bet_refund.
func (s *BetService) CancelBet(ctx context.Context, betID, actorID uuid.UUID) (*model.Bet, error) {
	bet, err := s.store.Bets.GetByID(ctx, betID)
	if err != nil {
		return nil, translate(err)
	}

	var cancelled *model.Bet
	err = s.wallets.withUserLock(ctx, bet.UserID, func() error {
		return s.store.InTx(ctx, func(tx *repository.Tx) error {
			current, err := tx.Bets.GetForUpdate(ctx, betID)
			if err != nil {
				return err
			}
			if current.Status != model.BetStatusPending {
				return ErrBetNotPending
			}

			cancelled, err = tx.Bets.Cancel(ctx, betID)
			if err != nil {
				if errors.Is(err, repository.ErrNotPending) {
					return ErrBetNotPending
				}
				return err
			}

			_, err = s.wallets.applyInTx(ctx, tx, Mutation{
				UserID:      current.UserID,
				Amount:      current.TotalAmount,
				Type:        model.TxTypeBetRefund,
				ReferenceID: &current.ID,
				Description: "Refund for cancelled bet",
			})
			return err
		})
	})
	err = translate(err)
	s.wallets.observe(model.TxTypeBetRefund, err)
	if err != nil {
		return nil, err
	}

	s.metrics.BetSettled(string(model.BetStatusCancelled))
	log.Info().
		Str("bet_id", betID.String()).
		Str("actor_id", actorID.String()).
		Str("refund", cancelled.TotalAmount.String()).
		Msg("Bet cancelled")

	return cancelled, nil
}

// UserBets returns a user's bets, newest first.
func (s *BetService) UserBets(ctx context.Context, userID uuid.UUID, limit int) ([]*model.Bet, error) {
	bets, err := s.store.Bets.ListByUser(ctx, userID, normalizeLimit(limit))
	if err != nil {
		return nil, translate(err)
	}
	return bets, nil
}

func positiveMoney(d decimal.Decimal) bool {
	return d.IsPositive() && validMoney(d)
}
