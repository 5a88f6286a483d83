// Package handler serves the admin endpoints on the ops listener.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/service"
)

const defaultTopLimit = 10

// Reports is the report source the handler reads.
type Reports interface {
	Summary(ctx context.Context) (*model.Summary, error)
	DailyWinnersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyResult, error)
	DailyLosersForDate(ctx context.Context, date time.Time, limit int) ([]*model.DailyResult, error)
}

// Reconciler checks a wallet against its transaction log.
type Reconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*service.Reconciliation, error)
}

// ReportHandler serves the dashboard summary, the daily leaderboard and
// wallet reconciliation.
type ReportHandler struct {
	reports  Reports
	wallets  Reconciler
	timezone *time.Location
}

// NewReportHandler creates a new ReportHandler. Dates in requests are
// calendar days in timezone.
func NewReportHandler(reports Reports, wallets Reconciler, timezone *time.Location) *ReportHandler {
	if timezone == nil {
		timezone = time.UTC
	}
	return &ReportHandler{
		reports:  reports,
		wallets:  wallets,
		timezone: timezone,
	}
}

// Routes registers the handler's endpoints.
func (h *ReportHandler) Routes(r chi.Router) {
	r.Get("/reports/summary", h.HandleSummary)
	r.Get("/reports/daily", h.HandleDailyTop)
	r.Get("/wallets/{userID}/reconcile", h.HandleReconcile)
}

type summaryResponse struct {
	TotalWagered     string `json:"total_wagered"`
	TotalPaidOut     string `json:"total_paid_out"`
	TotalDeposits    string `json:"total_deposits"`
	TotalWithdrawals string `json:"total_withdrawals"`
	PendingBets      int64  `json:"pending_bets"`
	WonBets          int64  `json:"won_bets"`
	LostBets         int64  `json:"lost_bets"`
	CancelledBets    int64  `json:"cancelled_bets"`
}

// HandleSummary handles GET /reports/summary.
func (h *ReportHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.reports.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalWagered:     s.TotalWagered.StringFixed(2),
		TotalPaidOut:     s.TotalPaidOut.StringFixed(2),
		TotalDeposits:    s.TotalDeposits.StringFixed(2),
		TotalWithdrawals: s.TotalWithdrawals.StringFixed(2),
		PendingBets:      s.PendingBets,
		WonBets:          s.WonBets,
		LostBets:         s.LostBets,
		CancelledBets:    s.CancelledBets,
	})
}

type rankEntry struct {
	Rank      int       `json:"rank"`
	UserID    uuid.UUID `json:"user_id"`
	NetResult string    `json:"net_result"`
}

type dailyTopResponse struct {
	Date    string      `json:"date"`
	Winners []rankEntry `json:"winners"`
	Losers  []rankEntry `json:"losers"`
}

// HandleDailyTop handles GET /reports/daily?date=YYYY-MM-DD&limit=N.
// It returns the day's top winners and top losers.
func (h *ReportHandler) HandleDailyTop(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := time.Now().In(h.timezone)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation(time.DateOnly, v, h.timezone)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
			return
		}
		date = d
	}

	limit := defaultTopLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	winners, err := h.reports.DailyWinnersForDate(ctx, date, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	losers, err := h.reports.DailyLosersForDate(ctx, date, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dailyTopResponse{
		Date:    date.Format(time.DateOnly),
		Winners: ranked(winners),
		Losers:  ranked(losers),
	})
}

type reconcileResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	Balance    string     `json:"balance"`
	LedgerSum  string     `json:"ledger_sum"`
	Entries    int        `json:"entries"`
	Consistent bool       `json:"consistent"`
	BrokenAt   *uuid.UUID `json:"broken_at,omitempty"`
}

// HandleReconcile handles GET /wallets/{userID}/reconcile.
func (h *ReportHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid user id"})
		return
	}

	rec, err := h.wallets.Reconcile(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{
		UserID:     rec.UserID,
		Balance:    rec.Balance.StringFixed(2),
		LedgerSum:  rec.LedgerSum.StringFixed(2),
		Entries:    rec.Entries,
		Consistent: rec.Consistent(),
		BrokenAt:   rec.BrokenAt,
	})
}

func ranked(results []*model.DailyResult) []rankEntry {
	entries := make([]rankEntry, len(results))
	for i, res := range results {
		entries[i] = rankEntry{Rank: i + 1, UserID: res.UserID, NetResult: res.NetResult.StringFixed(2)}
	}
	return entries
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps a service error category onto an HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Admin request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}
