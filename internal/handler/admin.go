package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lottery-ledger/internal/model"
	"lottery-ledger/internal/service"
)

// AdminHeader carries the operator's user ID on admin write requests.
const AdminHeader = "X-Admin-ID"

const maxBodyBytes = 1 << 16

// Settler declares draw results.
type Settler interface {
	DeclareResult(ctx context.Context, lotteryID uuid.UUID, winningNumber string, declaredBy uuid.UUID) (*service.Settlement, error)
}

// Approver decides payment requests.
type Approver interface {
	Approve(ctx context.Context, requestID, approverID uuid.UUID) (*model.PaymentRequest, error)
	Reject(ctx context.Context, requestID, approverID uuid.UUID, notes string) (*model.PaymentRequest, error)
}

// Canceller voids pending bets.
type Canceller interface {
	CancelBet(ctx context.Context, betID, actorID uuid.UUID) (*model.Bet, error)
}

// AdminHandler serves the operator write actions: result declaration,
// payment decisions and bet cancellation.
type AdminHandler struct {
	settlement Settler
	payments   Approver
	bets       Canceller
	isAdmin    func(uuid.UUID) bool
}

// NewAdminHandler creates a new AdminHandler. isAdmin decides which
// operator IDs may call it.
func NewAdminHandler(settlement Settler, payments Approver, bets Canceller, isAdmin func(uuid.UUID) bool) *AdminHandler {
	return &AdminHandler{
		settlement: settlement,
		payments:   payments,
		bets:       bets,
		isAdmin:    isAdmin,
	}
}

// Routes registers the handler's endpoints behind the admin check.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/lotteries/{lotteryID}/result", h.HandleDeclareResult)
		r.Post("/payments/{requestID}/approve", h.HandleApprove)
		r.Post("/payments/{requestID}/reject", h.HandleReject)
		r.Post("/bets/{betID}/cancel", h.HandleCancelBet)
	})
}

type adminKey struct{}

func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID, err := uuid.Parse(r.Header.Get(AdminHeader))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + AdminHeader})
			return
		}
		if !h.isAdmin(adminID) {
			log.Warn().Str("admin_id", adminID.String()).Str("path", r.URL.Path).Msg("Rejected admin request")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "not an admin"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, adminID)))
	})
}

func adminFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(adminKey{}).(uuid.UUID)
	return id
}

type declareRequest struct {
	WinningNumber string `json:"winning_number"`
}

type settlementResponse struct {
	LotteryID     uuid.UUID `json:"lottery_id"`
	WinningNumber string    `json:"winning_number"`
	Settled       int       `json:"settled"`
	Won           int       `json:"won"`
	Lost          int       `json:"lost"`
	TotalPaid     string    `json:"total_paid"`
	Resumed       bool      `json:"resumed"`
}

type declareConflictResponse struct {
	Error      string             `json:"error"`
	Settlement settlementResponse `json:"settlement"`
}

// HandleDeclareResult handles POST /lotteries/{lotteryID}/result.
// A repeated declaration answers 409 with the pass that ran against the
// stored result.
func (h *AdminHandler) HandleDeclareResult(w http.ResponseWriter, r *http.Request) {
	lotteryID, ok := pathID(w, r, "lotteryID")
	if !ok {
		return
	}
	var req declareRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	adminID := adminFrom(r.Context())
	outcome, err := h.settlement.DeclareResult(r.Context(), lotteryID, req.WinningNumber, adminID)
	if errors.Is(err, service.ErrResultAlreadyDeclared) && outcome != nil {
		writeJSON(w, http.StatusConflict, declareConflictResponse{
			Error:      err.Error(),
			Settlement: toSettlementResponse(outcome),
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("lottery_id", lotteryID.String()).
		Str("operation", "declare_result").
		Msg("Admin operation executed")
	writeJSON(w, http.StatusOK, toSettlementResponse(outcome))
}

func toSettlementResponse(s *service.Settlement) settlementResponse {
	return settlementResponse{
		LotteryID:     s.LotteryID,
		WinningNumber: s.WinningNumber,
		Settled:       s.Settled,
		Won:           s.Won,
		Lost:          s.Lost,
		TotalPaid:     s.TotalPaid.StringFixed(2),
		Resumed:       s.Resumed,
	}
}

type paymentResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Type        string     `json:"type"`
	Amount      string     `json:"amount"`
	Status      string     `json:"status"`
	AdminNotes  *string    `json:"admin_notes,omitempty"`
	ProcessedBy *uuid.UUID `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

func toPaymentResponse(p *model.PaymentRequest) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Type:        string(p.Type),
		Amount:      p.Amount.StringFixed(2),
		Status:      string(p.Status),
		AdminNotes:  p.AdminNotes,
		ProcessedBy: p.ProcessedBy,
		ProcessedAt: p.ProcessedAt,
	}
}

// HandleApprove handles POST /payments/{requestID}/approve.
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}

	approved, err := h.payments.Approve(r.Context(), requestID, adminFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(approved))
}

type rejectRequest struct {
	Notes string `json:"notes"`
}

// HandleReject handles POST /payments/{requestID}/reject. The body is
// optional.
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	requestID, ok := pathID(w, r, "requestID")
	if !ok {
		return
	}
	var req rejectRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	rejected, err := h.payments.Reject(r.Context(), requestID, adminFrom(r.Context()), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(rejected))
}

type betResponse struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	LotteryID   uuid.UUID `json:"lottery_id"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
}

// HandleCancelBet handles POST /bets/{betID}/cancel.
func (h *AdminHandler) HandleCancelBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := pathID(w, r, "betID")
	if !ok {
		return
	}

	bet, err := h.bets.CancelBet(r.Context(), betID, adminFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, betResponse{
		ID:          bet.ID,
		UserID:      bet.UserID,
		LotteryID:   bet.LotteryID,
		Status:      string(bet.Status),
		TotalAmount: bet.TotalAmount.StringFixed(2),
	})
}

// pathID parses a UUID URL parameter, answering 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return errors.New("invalid request body")
	}
	return nil
}
