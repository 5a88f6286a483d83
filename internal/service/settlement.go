package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/game/lottery"
	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/events"
	"lottery-ledger/internal/pkg/lock"
	"lottery-ledger/internal/pkg/metrics"
	"lottery-ledger/internal/repository"
)

// Settlement triggers, used as metric labels.
const (
	triggerDeclare = "declare"
	triggerResume  = "resume"
)

// Settlement is the outcome of one settlement pass over a draw.
type Settlement struct {
	LotteryID     uuid.UUID
	WinningNumber string
	// Settled counts bets this pass moved out of pending.
	Settled int
	Won     int
	Lost    int
	// TotalPaid is the sum of the bet_won credits this pass issued.
	TotalPaid decimal.Decimal
	// Resumed is set when the result was already stored and the pass only
	// finished bets left pending by an earlier one.
	Resumed bool
}

// SettlementService declares draw results and pays winning bets.
//
// Each bet settles in its own database transaction: the bet row is locked,
// skipped if no longer pending, marked won or lost and, for a winner,
// credited through the wallet primitive before commit. A pass interrupted
// half way therefore leaves every bet either fully settled or still
// pending, and running the pass again finishes the rest without paying any
// bet twice.
type SettlementService struct {
	store     *repository.Store
	wallets   *WalletService
	publisher events.Publisher
	metrics   *metrics.Metrics
	passes    *lock.Keyed[uuid.UUID]
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	store *repository.Store,
	wallets *WalletService,
	publisher events.Publisher,
	m *metrics.Metrics,
) *SettlementService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SettlementService{
		store:     store,
		wallets:   wallets,
		publisher: publisher,
		metrics:   m,
		passes:    lock.New[uuid.UUID](),
	}
}

// DeclareResult stores the winning number of a draw and settles its pending
// bets.
//
// A draw has at most one result. If one is already stored, the new number
// is ignored, bets still pending are settled against the stored result and
// the outcome is returned together with ErrResultAlreadyDeclared. A pass
// that fails part way returns the partial outcome and the error; calling
// DeclareResult or ResumeSettlement again completes it.
func (s *SettlementService) DeclareResult(ctx context.Context, lotteryID uuid.UUID, winningNumber string, declaredBy uuid.UUID) (*Settlement, error) {
	draw, err := lottery.ParseWinningNumber(winningNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWinningNumber, winningNumber)
	}

	err = s.store.InTx(ctx, func(tx *repository.Tx) error {
		// Waits for in-flight checkouts holding the row FOR SHARE.
		if _, err := tx.Lotteries.GetForUpdate(ctx, lotteryID); err != nil {
			return err
		}
		_, err := tx.Results.Create(ctx, &model.LotteryResult{
			LotteryID:     lotteryID,
			WinningNumber: draw.Number,
			DigitA:        draw.A,
			DigitB:        draw.B,
			DigitC:        draw.C,
			DeclaredBy:    &declaredBy,
		})
		return err
	})

	resumed := false
	switch {
	case err == nil:
		log.Info().
			Str("lottery_id", lotteryID.String()).
			Str("winning_number", draw.Number).
			Str("declared_by", declaredBy.String()).
			Msg("Lottery result declared")
	case errors.Is(err, repository.ErrResultExists):
		stored, err := s.storedDraw(ctx, lotteryID)
		if err != nil {
			return nil, err
		}
		if stored.Number != draw.Number {
			log.Warn().
				Str("lottery_id", lotteryID.String()).
				Str("stored", stored.Number).
				Str("requested", draw.Number).
				Msg("Result already declared with a different number, keeping the stored one")
		}
		draw, resumed = stored, true
	default:
		return nil, translate(err)
	}

	trigger := triggerDeclare
	if resumed {
		trigger = triggerResume
	}
	outcome, err := s.settle(ctx, lotteryID, draw, resumed, trigger)
	if err != nil {
		return outcome, err
	}
	if resumed {
		return outcome, ErrResultAlreadyDeclared
	}
	return outcome, nil
}

// ResumeSettlement finishes settling a draw whose result is already stored.
func (s *SettlementService) ResumeSettlement(ctx context.Context, lotteryID uuid.UUID) (*Settlement, error) {
	draw, err := s.storedDraw(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, lotteryID, draw, true, triggerResume)
}

// ResumeAll resumes every draw that has a stored result and pending bets.
// It keeps going past failing draws and returns their errors joined.
func (s *SettlementService) ResumeAll(ctx context.Context) ([]*Settlement, error) {
	ids, err := s.store.Bets.LotteriesPendingSettlement(ctx)
	if err != nil {
		return nil, translate(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	log.Info().Int("lotteries", len(ids)).Msg("Resuming interrupted settlements")

	var (
		outcomes []*Settlement
		errs     []error
	)
	for _, id := range ids {
		outcome, err := s.ResumeSettlement(ctx, id)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("lottery %s: %w", id, err))
		}
	}
	return outcomes, errors.Join(errs...)
}

// Result returns the declared result of a draw.
func (s *SettlementService) Result(ctx context.Context, lotteryID uuid.UUID) (*model.LotteryResult, error) {
	res, err := s.store.Results.GetByLottery(ctx, lotteryID)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (s *SettlementService) storedDraw(ctx context.Context, lotteryID uuid.UUID) (lottery.Draw, error) {
	res, err := s.store.Results.GetByLottery(ctx, lotteryID)
	if err != nil {
		return lottery.Draw{}, translate(err)
	}
	draw, err := lottery.ParseWinningNumber(res.WinningNumber)
	if err != nil {
		return lottery.Draw{}, errors.Join(ErrPersistence, fmt.Errorf("stored winning number %q: %w", res.WinningNumber, err))
	}
	return draw, nil
}

// settle runs one pass over the pending bets of a draw. Passes over the
// same draw are serialized within the process.
func (s *SettlementService) settle(ctx context.Context, lotteryID uuid.UUID, draw lottery.Draw, resumed bool, trigger string) (*Settlement, error) {
	outcome := &Settlement{
		LotteryID:     lotteryID,
		WinningNumber: draw.Number,
		TotalPaid:     decimal.Zero,
		Resumed:       resumed,
	}

	err := s.passes.WithLockContext(ctx, lotteryID, 0, func() error {
		pending, err := s.store.Bets.ListPendingByLottery(ctx, lotteryID)
		if err != nil {
			return translate(err)
		}

		for _, bet := range pending {
			status, paid, err := s.settleBet(ctx, bet, draw)
			if err != nil {
				return fmt.Errorf("settle bet %s: %w", bet.ID, err)
			}
			switch status {
			case model.BetStatusWon:
				outcome.Won++
				outcome.TotalPaid = outcome.TotalPaid.Add(paid)
			case model.BetStatusLost:
				outcome.Lost++
			default:
				continue
			}
			outcome.Settled++
		}
		return nil
	})

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
		log.Error().Err(err).
			Str("lottery_id", lotteryID.String()).
			Int("settled", outcome.Settled).
			Msg("Settlement pass interrupted, pending bets remain")
	} else {
		log.Info().
			Str("lottery_id", lotteryID.String()).
			Str("winning_number", draw.Number).
			Int("settled", outcome.Settled).
			Int("won", outcome.Won).
			Int("lost", outcome.Lost).
			Str("total_paid", outcome.TotalPaid.String()).
			Bool("resumed", resumed).
			Msg("Settlement pass complete")
	}
	s.metrics.SettlementRun(trigger, result)

	if outcome.Settled > 0 {
		s.publish(ctx, outcome)
	}
	return outcome, err
}

// settleBet settles one bet atomically. It returns an empty status when the
// bet was already settled by someone else.
func (s *SettlementService) settleBet(ctx context.Context, bet *model.Bet, draw lottery.Draw) (model.BetStatus, decimal.Decimal, error) {
	won := lottery.IsBetWinner(draw, bet)

	var status model.BetStatus
	paid := decimal.Zero
	unit := func() error {
		status, paid = "", decimal.Zero
		return s.store.InTx(ctx, func(tx *repository.Tx) error {
			current, err := tx.Bets.GetForUpdate(ctx, bet.ID)
			if err != nil {
				return err
			}
			if current.Status != model.BetStatusPending {
				return nil
			}

			if !won {
				if _, err := tx.Bets.MarkSettled(ctx, current.ID, model.BetStatusLost, decimal.Zero); err != nil {
					return err
				}
				status = model.BetStatusLost
				return nil
			}

			win := current.PotentialWinAmount
			if _, err := tx.Bets.MarkSettled(ctx, current.ID, model.BetStatusWon, win); err != nil {
				return err
			}
			if _, err := s.wallets.applyInTx(ctx, tx, Mutation{
				UserID:      current.UserID,
				Amount:      win,
				Type:        model.TxTypeBetWon,
				ReferenceID: &current.ID,
				Description: fmt.Sprintf("Won bet on %s", draw.Number),
			}); err != nil {
				return err
			}
			status, paid = model.BetStatusWon, win
			return nil
		})
	}

	var err error
	if won {
		err = s.wallets.withUserLock(ctx, bet.UserID, unit)
	} else {
		err = unit()
	}
	if errors.Is(err, repository.ErrNotPending) {
		return "", decimal.Zero, nil
	}
	err = translate(err)
	if won {
		s.wallets.observe(model.TxTypeBetWon, err)
	}
	if err != nil {
		return "", decimal.Zero, err
	}

	if status != "" {
		s.metrics.BetSettled(string(status))
	}
	if status == model.BetStatusWon {
		s.metrics.Payout(paid)
	}
	return status, paid, nil
}

func (s *SettlementService) publish(ctx context.Context, outcome *Settlement) {
	err := s.publisher.Publish(ctx, events.ResultDeclared{
		LotteryID:     outcome.LotteryID,
		WinningNumber: outcome.WinningNumber,
		Settled:       outcome.Settled,
		Won:           outcome.Won,
		Lost:          outcome.Lost,
		TotalPaid:     outcome.TotalPaid.String(),
		Resumed:       outcome.Resumed,
		At:            time.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("lottery_id", outcome.LotteryID.String()).Msg("Failed to publish settlement event")
	}
}
