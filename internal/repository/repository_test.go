// Tests run against a PostgreSQL testcontainer and are skipped when Docker
// is not available.
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/dbtest"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string {
	return &s
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dbtest.Setup(t), 3)
}

func createLottery(t *testing.T, ctx context.Context, s *Store) *model.Lottery {
	t.Helper()
	l, err := s.Lotteries.Create(ctx, &model.Lottery{
		Name:                 "Evening Draw",
		DrawTime:             time.Now().Add(time.Hour),
		IsActive:             true,
		SingleDigitPrice:     dec("10"),
		SingleDigitWinAmount: dec("90"),
		DoubleDigitPrice:     dec("10"),
		DoubleDigitWinAmount: dec("900"),
		TripleDigitPrice:     dec("10"),
		TripleDigitWinAmount: dec("9000"),
		TripleBoxPrice:       dec("10"),
		TripleBoxWinAmount:   dec("1500"),
	})
	require.NoError(t, err)
	return l
}

func TestWalletRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Create and Get", func(t *testing.T) {
		w, err := s.Wallets.Create(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, w.UserID)
		assert.True(t, w.Balance.IsZero())
		assert.Equal(t, int64(0), w.Version)

		got, err := s.Wallets.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, w.UserID, got.UserID)

		exists, err := s.Wallets.Exists(ctx, userID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Create duplicate", func(t *testing.T) {
		_, err := s.Wallets.Create(ctx, userID)
		assert.ErrorIs(t, err, ErrWalletExists)
	})

	t.Run("Get missing", func(t *testing.T) {
		_, err := s.Wallets.GetByUserID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})

	t.Run("UpdateBalance checks version", func(t *testing.T) {
		w, err := s.Wallets.UpdateBalance(ctx, userID, 0, dec("125.50"))
		require.NoError(t, err)
		assert.Equal(t, "125.5", w.Balance.String())
		assert.Equal(t, int64(1), w.Version)

		_, err = s.Wallets.UpdateBalance(ctx, userID, 0, dec("1"))
		assert.ErrorIs(t, err, ErrStaleVersion)
	})

	t.Run("Negative balance rejected by schema", func(t *testing.T) {
		_, err := s.Wallets.UpdateBalance(ctx, userID, 1, dec("-1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrStaleVersion)
	})
}

func TestTransactionRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.Wallets.Create(ctx, userID)
	require.NoError(t, err)

	ref := uuid.New()
	entries := []*model.Transaction{
		{UserID: userID, Type: model.TxTypeDeposit, Amount: dec("200"), BalanceAfter: dec("200")},
		{UserID: userID, Type: model.TxTypeBetPlaced, Amount: dec("-30"), BalanceAfter: dec("170"), ReferenceID: &ref},
		{UserID: userID, Type: model.TxTypeBetWon, Amount: dec("90"), BalanceAfter: dec("260"), ReferenceID: &ref},
	}
	for _, e := range entries {
		created, err := s.Transactions.Create(ctx, e)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, model.TxStatusCompleted, created.Status)
	}

	t.Run("ListByUser newest first", func(t *testing.T) {
		txs, err := s.Transactions.ListByUser(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, model.TxTypeBetWon, txs[0].Type)
		assert.Equal(t, model.TxTypeDeposit, txs[2].Type)
	})

	t.Run("Chain in write order", func(t *testing.T) {
		txs, err := s.Transactions.Chain(ctx, userID)
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, "200", txs[0].BalanceAfter.String())
		assert.Equal(t, "260", txs[2].BalanceAfter.String())
	})

	t.Run("SumByUser", func(t *testing.T) {
		sum, err := s.Transactions.SumByUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "260", sum.String())
	})

	t.Run("ListByReferences", func(t *testing.T) {
		txs, err := s.Transactions.ListByReferences(ctx, model.TxTypeBetWon, []uuid.UUID{ref, uuid.New()})
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, ref, *txs[0].ReferenceID)

		txs, err = s.Transactions.ListByReferences(ctx, model.TxTypeBetWon, nil)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestLotteryRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	l := createLottery(t, ctx, s)
	got, err := s.Lotteries.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening Draw", got.Name)
	assert.Equal(t, "1500", got.TripleBoxWinAmount.String())
	assert.Equal(t, "900", got.DoubleDigitWinAmount.String())

	require.NoError(t, s.Lotteries.SetActive(ctx, l.ID, false))
	got, err = s.Lotteries.GetByID(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = s.Lotteries.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrLotteryNotFound)
	assert.ErrorIs(t, s.Lotteries.SetActive(ctx, uuid.New(), true), ErrLotteryNotFound)
}

func TestBetRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.Wallets.Create(ctx, userID)
	require.NoError(t, err)
	l := createLottery(t, ctx, s)

	bets, err := s.Bets.InsertBatch(ctx, []*model.Bet{
		{
			UserID: userID, LotteryID: l.ID, BetType: model.BetTypeSingle, Position: strPtr("A"),
			SelectedNumber: "4", Quantity: 2, UnitPrice: dec("10"), TotalAmount: dec("20"), PotentialWinAmount: dec("180"),
		},
		{
			UserID: userID, LotteryID: l.ID, BetType: model.BetTypeTriple,
			SelectedNumber: "248", IsBox: true, Quantity: 1, UnitPrice: dec("10"), TotalAmount: dec("10"), PotentialWinAmount: dec("1500"),
		},
	})
	require.NoError(t, err)
	require.Len(t, bets, 2)
	assert.Equal(t, model.BetStatusPending, bets[0].Status)
	assert.Equal(t, "A", bets[0].PositionString())
	assert.Nil(t, bets[1].Position)
	assert.Nil(t, bets[0].WinAmount)

	t.Run("ListPendingByLottery", func(t *testing.T) {
		pending, err := s.Bets.ListPendingByLottery(ctx, l.ID)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("MarkSettled only once", func(t *testing.T) {
		won, err := s.Bets.MarkSettled(ctx, bets[0].ID, model.BetStatusWon, dec("180"))
		require.NoError(t, err)
		assert.Equal(t, model.BetStatusWon, won.Status)
		require.NotNil(t, won.WinAmount)
		assert.Equal(t, "180", won.WinAmount.String())
		assert.NotNil(t, won.SettledAt)

		_, err = s.Bets.MarkSettled(ctx, bets[0].ID, model.BetStatusLost, decimal.Zero)
		assert.ErrorIs(t, err, ErrNotPending)

		_, err = s.Bets.Cancel(ctx, bets[0].ID)
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("Lost bets record a zero win amount", func(t *testing.T) {
		lost, err := s.Bets.MarkSettled(ctx, bets[1].ID, model.BetStatusLost, dec("1500"))
		require.NoError(t, err)
		require.NotNil(t, lost.WinAmount)
		assert.True(t, lost.WinAmount.IsZero())
	})

	t.Run("ListByUser", func(t *testing.T) {
		all, err := s.Bets.ListByUser(ctx, userID, 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Unknown wallet", func(t *testing.T) {
		_, err := s.Bets.InsertBatch(ctx, []*model.Bet{{
			UserID: uuid.New(), LotteryID: l.ID, BetType: model.BetTypeSingle, Position: strPtr("B"),
			SelectedNumber: "1", Quantity: 1, UnitPrice: dec("10"), TotalAmount: dec("10"), PotentialWinAmount: dec("90"),
		}})
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestResultRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	l := createLottery(t, ctx, s)
	admin := uuid.New()

	res, err := s.Results.Create(ctx, &model.LotteryResult{
		LotteryID: l.ID, WinningNumber: "482", DigitA: "4", DigitB: "8", DigitC: "2", DeclaredBy: &admin,
	})
	require.NoError(t, err)
	assert.Equal(t, "482", res.WinningNumber)

	_, err = s.Results.Create(ctx, &model.LotteryResult{
		LotteryID: l.ID, WinningNumber: "111", DigitA: "1", DigitB: "1", DigitC: "1",
	})
	assert.ErrorIs(t, err, ErrResultExists)

	got, err := s.Results.GetByLottery(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "482", got.WinningNumber)
	require.NotNil(t, got.DeclaredBy)
	assert.Equal(t, admin, *got.DeclaredBy)

	_, err = s.Results.GetByLottery(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = s.Results.Create(ctx, &model.LotteryResult{
		LotteryID: uuid.New(), WinningNumber: "123", DigitA: "1", DigitB: "2", DigitC: "3",
	})
	assert.ErrorIs(t, err, ErrLotteryNotFound)
}

func TestPaymentRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.Wallets.Create(ctx, userID)
	require.NoError(t, err)

	req, err := s.Payments.Create(ctx, &model.PaymentRequest{
		UserID: userID, Type: model.PaymentTypeDeposit, Amount: dec("500"), UPIReference: strPtr("UTR123"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, req.Status)

	pending, err := s.Payments.ListByStatus(ctx, model.PaymentStatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	admin := uuid.New()
	done, err := s.Payments.MarkProcessed(ctx, req.ID, model.PaymentStatusApproved, admin, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, done.Status)
	require.NotNil(t, done.ProcessedBy)
	assert.Equal(t, admin, *done.ProcessedBy)
	assert.NotNil(t, done.ProcessedAt)

	_, err = s.Payments.MarkProcessed(ctx, req.ID, model.PaymentStatusRejected, admin, strPtr("late"))
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = s.Payments.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPaymentRequestNotFound)

	mine, err := s.Payments.ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestStore_InTx(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := s.Wallets.Create(ctx, userID)
	require.NoError(t, err)

	t.Run("Rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx *Tx) error {
			w, err := tx.Wallets.GetForUpdate(ctx, userID)
			require.NoError(t, err)
			_, err = tx.Wallets.UpdateBalance(ctx, userID, w.Version, dec("50"))
			require.NoError(t, err)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		w, err := s.Wallets.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.True(t, w.Balance.IsZero())
	})

	t.Run("Stale version retried then exhausted", func(t *testing.T) {
		attempts := 0
		err := s.InTx(ctx, func(tx *Tx) error {
			attempts++
			_, err := tx.Wallets.UpdateBalance(ctx, userID, 999, dec("1"))
			return err
		})
		assert.ErrorIs(t, err, ErrSerialization)
		assert.Equal(t, 3, attempts)
	})

	t.Run("Commit", func(t *testing.T) {
		err := s.InTx(ctx, func(tx *Tx) error {
			w, err := tx.Wallets.GetForUpdate(ctx, userID)
			if err != nil {
				return err
			}
			_, err = tx.Wallets.UpdateBalance(ctx, userID, w.Version, dec("75"))
			return err
		})
		require.NoError(t, err)

		w, err := s.Wallets.GetByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, "75", w.Balance.String())
	})
}

func TestReportRepository(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	winner, loser := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{winner, loser} {
		_, err := s.Wallets.Create(ctx, id)
		require.NoError(t, err)
	}

	entries := []*model.Transaction{
		{UserID: winner, Type: model.TxTypeDeposit, Amount: dec("100"), BalanceAfter: dec("100")},
		{UserID: winner, Type: model.TxTypeBetPlaced, Amount: dec("-10"), BalanceAfter: dec("90")},
		{UserID: winner, Type: model.TxTypeBetWon, Amount: dec("90"), BalanceAfter: dec("180")},
		{UserID: loser, Type: model.TxTypeDeposit, Amount: dec("100"), BalanceAfter: dec("100")},
		{UserID: loser, Type: model.TxTypeBetPlaced, Amount: dec("-40"), BalanceAfter: dec("60")},
	}
	for _, e := range entries {
		_, err := s.Transactions.Create(ctx, e)
		require.NoError(t, err)
	}

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	all, err := s.Reports.DailyResults(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, winner, all[0].UserID)
	assert.Equal(t, "80", all[0].NetResult.String())

	winners, err := s.Reports.DailyWinners(ctx, start, end, 10)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, winner, winners[0].UserID)

	losers, err := s.Reports.DailyLosers(ctx, start, end, 10)
	require.NoError(t, err)
	require.Len(t, losers, 1)
	assert.Equal(t, "-40", losers[0].NetResult.String())

	net, err := s.Reports.UserNetResult(ctx, loser, start, end)
	require.NoError(t, err)
	assert.Equal(t, "-40", net.NetResult.String())

	summary, err := s.Reports.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "90", summary.TotalPaidOut.String())
	assert.True(t, summary.TotalDeposits.IsZero())
	assert.Equal(t, int64(0), summary.PendingBets)
}
