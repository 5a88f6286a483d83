package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/pkg/cache"
	"lottery-ledger/internal/repository"
)

// ReportService serves the admin dashboard figures and daily leaderboards.
// Days are calendar days in the configured timezone. Summary and the
// leaderboards may be served from the cache and lag the ledger by up to
// the cache TTL.
type ReportService struct {
	store    *repository.Store
	timezone *time.Location
	cache    cache.Cache
}

// NewReportService creates a new ReportService instance.
func NewReportService(store *repository.Store, timezone *time.Location, c cache.Cache) *ReportService {
	if timezone == nil {
		timezone = time.UTC
	}
	if c == nil {
		c = cache.Nop{}
	}
	return &ReportService{
		store:    store,
		timezone: timezone,
		cache:    c,
	}
}

// Summary returns ledger-wide totals.
func (s *ReportService) Summary(ctx context.Context) (*model.Summary, error) {
	return cached(ctx, s.cache, "summary", func() (*model.Summary, error) {
		return s.store.Reports.Summary(ctx)
	})
}

// DailyWinners returns today's users with the largest net game gain.
func (s *ReportService) DailyWinners(ctx context.Context, limit int) ([]*model.DailyResult, error) {
	return s.DailyWinnersForDate(ctx, time.Now(), limit)
}

// DailyLosers returns today's users with the largest net game loss.
func (s *ReportService) DailyLosers(ctx context.Context, limit int) ([]*model.DailyResult, error) {
	return s.DailyLosersForDate(ctx, time.Now(), limit)
}

// DailyWinnersForDate returns the top winners of the day containing date.
func (s *ReportService) DailyWinnersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyResult, error) {
	start, end := s.dayBounds(date)
	limit = normalizeLimit(limit)
	key := fmt.Sprintf("winners:%s:%d", start.Format(time.DateOnly), limit)
	return cached(ctx, s.cache, key, func() ([]*model.DailyResult, error) {
		return s.store.Reports.DailyWinners(ctx, start, end, limit)
	})
}

// DailyLosersForDate returns the top losers of the day containing date.
func (s *ReportService) DailyLosersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyResult, error) {
	start, end := s.dayBounds(date)
	limit = normalizeLimit(limit)
	key := fmt.Sprintf("losers:%s:%d", start.Format(time.DateOnly), limit)
	return cached(ctx, s.cache, key, func() ([]*model.DailyResult, error) {
		return s.store.Reports.DailyLosers(ctx, start, end, limit)
	})
}

// DailyResults returns every user's net game result for the day containing date.
func (s *ReportService) DailyResults(ctx context.Context, date time.Time) ([]*model.DailyResult, error) {
	start, end := s.dayBounds(date)
	res, err := s.store.Reports.DailyResults(ctx, start, end)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

// UserDailyResult returns one user's net game result for the day containing date.
func (s *ReportService) UserDailyResult(ctx context.Context, userID uuid.UUID, date time.Time) (*model.DailyResult, error) {
	start, end := s.dayBounds(date)
	res, err := s.store.Reports.UserNetResult(ctx, userID, start, end)
	if err != nil {
		return nil, translate(err)
	}
	return res, nil
}

func (s *ReportService) dayBounds(date time.Time) (time.Time, time.Time) {
	d := date.In(s.timezone)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.timezone)
	return start, start.AddDate(0, 0, 1)
}

// cached is a read-through lookup. Cache failures are logged and the
// query runs against the store.
func cached[T any](ctx context.Context, c cache.Cache, key string, load func() (T, error)) (T, error) {
	var v T
	found, err := c.Get(ctx, key, &v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Report cache read failed")
	}
	if found {
		return v, nil
	}

	v, err = load()
	if err != nil {
		var zero T
		return zero, translate(err)
	}
	if err := c.Set(ctx, key, v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Report cache write failed")
	}
	return v, nil
}
