package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lottery-ledger/internal/model"
)

// ReportRepository runs read-only aggregate queries for the admin dashboard.
type ReportRepository struct {
	db DBTX
}

// NewReportRepository creates a new ReportRepository instance.
func NewReportRepository(db DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// Summary aggregates wagering, payout and payment totals.
func (r *ReportRepository) Summary(ctx context.Context) (*model.Summary, error) {
	const query = `
		SELECT
			(SELECT COALESCE(SUM(total_amount), 0) FROM bets WHERE status <> 'cancelled')::text,
			(SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'bet_won')::text,
			(SELECT COALESCE(SUM(amount), 0) FROM payment_requests WHERE type = 'deposit' AND status = 'approved')::text,
			(SELECT COALESCE(SUM(amount), 0) FROM payment_requests WHERE type = 'withdrawal' AND status = 'approved')::text,
			(SELECT COUNT(*) FROM bets WHERE status = 'pending'),
			(SELECT COUNT(*) FROM bets WHERE status = 'won'),
			(SELECT COUNT(*) FROM bets WHERE status = 'lost'),
			(SELECT COUNT(*) FROM bets WHERE status = 'cancelled')`

	var (
		s      model.Summary
		totals [4]string
	)
	err := r.db.QueryRow(ctx, query).Scan(
		&totals[0], &totals[1], &totals[2], &totals[3],
		&s.PendingBets, &s.WonBets, &s.LostBets, &s.CancelledBets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	columns := [4]string{"total_wagered", "total_paid_out", "total_deposits", "total_withdrawals"}
	dsts := [4]*decimal.Decimal{&s.TotalWagered, &s.TotalPaidOut, &s.TotalDeposits, &s.TotalWithdrawals}
	for i, dst := range dsts {
		if *dst, err = parseDecimal(columns[i], totals[i]); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// DailyResults returns each user's net game result between start and end,
// best first.
func (r *ReportRepository) DailyResults(ctx context.Context, start, end time.Time) ([]*model.DailyResult, error) {
	return r.dailyResults(ctx, "", start, end, 0)
}

// DailyWinners returns users with a positive net game result, best first.
func (r *ReportRepository) DailyWinners(ctx context.Context, start, end time.Time, limit int) ([]*model.DailyResult, error) {
	return r.dailyResults(ctx, "HAVING SUM(amount) > 0 ORDER BY SUM(amount) DESC, user_id", start, end, limit)
}

// DailyLosers returns users with a negative net game result, biggest loss first.
func (r *ReportRepository) DailyLosers(ctx context.Context, start, end time.Time, limit int) ([]*model.DailyResult, error) {
	return r.dailyResults(ctx, "HAVING SUM(amount) < 0 ORDER BY SUM(amount) ASC, user_id", start, end, limit)
}

// UserNetResult returns one user's net game result between start and end.
func (r *ReportRepository) UserNetResult(ctx context.Context, userID uuid.UUID, start, end time.Time) (*model.DailyResult, error) {
	const query = `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM transactions
		WHERE user_id = $1
		  AND type = ANY($2::text[])
		  AND created_at >= $3
		  AND created_at < $4`

	var net string
	if err := r.db.QueryRow(ctx, query, userID, gameTypes(), start, end).Scan(&net); err != nil {
		return nil, fmt.Errorf("failed to get user net result: %w", err)
	}
	d, err := parseDecimal("net_result", net)
	if err != nil {
		return nil, err
	}
	return &model.DailyResult{UserID: userID, NetResult: d}, nil
}

func (r *ReportRepository) dailyResults(ctx context.Context, tail string, start, end time.Time, limit int) ([]*model.DailyResult, error) {
	if tail == "" {
		tail = "ORDER BY SUM(amount) DESC, user_id"
	}
	query := `
		SELECT user_id, COALESCE(SUM(amount), 0)::text AS net_result
		FROM transactions
		WHERE type = ANY($1::text[])
		  AND created_at >= $2
		  AND created_at < $3
		GROUP BY user_id
		` + tail

	args := []any{gameTypes(), start, end}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily results: %w", err)
	}
	return collectDailyResults(rows)
}

func collectDailyResults(rows pgx.Rows) ([]*model.DailyResult, error) {
	defer rows.Close()

	var results []*model.DailyResult
	for rows.Next() {
		var (
			res model.DailyResult
			net string
		)
		if err := rows.Scan(&res.UserID, &net); err != nil {
			return nil, fmt.Errorf("failed to scan daily result: %w", err)
		}
		d, err := parseDecimal("net_result", net)
		if err != nil {
			return nil, err
		}
		res.NetResult = d
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily results: %w", err)
	}
	return results, nil
}

func gameTypes() []string {
	types := model.GameTransactionTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
