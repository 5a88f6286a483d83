package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"lottery-ledger/internal/model"
)

// PaymentRepository handles deposit and withdrawal requests.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository creates a new PaymentRepository instance.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *PaymentRepository) WithTx(tx pgx.Tx) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

const paymentColumns = `id, user_id, type, amount::text, status, upi_id, upi_reference, admin_notes,
	requested_at, processed_by, processed_at`

func scanPayment(row pgx.Row) (*model.PaymentRequest, error) {
	var (
		p      model.PaymentRequest
		amount string
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Type,
		&amount,
		&p.Status,
		&p.UPIID,
		&p.UPIReference,
		&p.AdminNotes,
		&p.RequestedAt,
		&p.ProcessedBy,
		&p.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]*model.PaymentRequest, error) {
	defer rows.Close()

	var requests []*model.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		requests = append(requests, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment requests: %w", err)
	}
	return requests, nil
}

// Create stores a new pending payment request.
func (r *PaymentRepository) Create(ctx context.Context, p *model.PaymentRequest) (*model.PaymentRequest, error) {
	query := `
		INSERT INTO payment_requests (id, user_id, type, amount, status, upi_id, upi_reference, requested_at)
		VALUES ($1, $2, $3, $4::numeric, 'pending', $5, $6, NOW())
		RETURNING ` + paymentColumns

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	created, err := scanPayment(r.db.QueryRow(ctx, query,
		id,
		p.UserID,
		p.Type,
		p.Amount.String(),
		p.UPIID,
		p.UPIReference,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}
	return created, nil
}

// GetByID retrieves a payment request by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PaymentRequest, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id)
}

// GetForUpdate retrieves a payment request holding its row lock.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.PaymentRequest, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *PaymentRepository) get(ctx context.Context, query string, id uuid.UUID) (*model.PaymentRequest, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentRequestNotFound
		}
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return p, nil
}

// MarkProcessed moves a pending request to approved or rejected.
// A request that is no longer pending returns ErrNotPending.
func (r *PaymentRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status model.PaymentStatus, processedBy uuid.UUID, notes *string) (*model.PaymentRequest, error) {
	query := `
		UPDATE payment_requests
		SET status = $2, processed_by = $3, processed_at = NOW(), admin_notes = COALESCE($4, admin_notes)
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.db.QueryRow(ctx, query, id, status, processedBy, notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("failed to process payment request: %w", err)
	}
	return p, nil
}

// ListByStatus retrieves requests with the given status, oldest first.
func (r *PaymentRepository) ListByStatus(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.PaymentRequest, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_requests
		WHERE status = $1
		ORDER BY requested_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment requests: %w", err)
	}
	return collectPayments(rows)
}

// ListByUser retrieves a user's requests, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*model.PaymentRequest, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_requests
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user payment requests: %w", err)
	}
	return collectPayments(rows)
}
