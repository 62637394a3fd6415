package repository

import (
	"context"
	"errors"

	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	paymentNotFoundMsg = "payment not found"

	paymentColumns = `id, lead_id, amount_cents, method, status, purpose, description, reference_number,
		backend_reference, paid_at, created_at, updated_at`
)

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var method, status int16
	var purpose string
	err := row.Scan(
		&p.ID, &p.LeadID, &p.AmountCents, &method, &status, &purpose, &p.Description, &p.ReferenceNumber,
		&p.BackendReference, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	p.Purpose = domain.PaymentPurpose(purpose)
	return p, err
}

// CreatePayment returns ErrReferenceTaken instead of failing the transaction
// when the backend reference collides.
func (r *Repo) CreatePayment(ctx context.Context, p domain.Payment) error {
	var id uuid.UUID
	err := r.q.QueryRow(ctx, `
		INSERT INTO payments (
			id, lead_id, amount_cents, method, status, purpose, description, reference_number,
			backend_reference, paid_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (backend_reference) DO NOTHING
		RETURNING id`,
		p.ID, p.LeadID, p.AmountCents, int16(p.Method), int16(p.Status), string(p.Purpose), p.Description,
		p.ReferenceNumber, p.BackendReference, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrReferenceTaken
	}
	return mapError("create payment", paymentNotFoundMsg, err)
}

func (r *Repo) GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return domain.Payment{}, mapError("get payment", paymentNotFoundMsg, err)
	}
	return p, nil
}

func (r *Repo) ListPayments(ctx context.Context, f PaymentFilter) ([]domain.Payment, error) {
	var method, status *int16
	if f.Method != nil {
		v := int16(*f.Method)
		method = &v
	}
	if f.Status != nil {
		v := int16(*f.Status)
		status = &v
	}
	var purpose *string
	if f.Purpose != nil {
		v := string(*f.Purpose)
		purpose = &v
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ($1::uuid IS NULL OR lead_id = $1)
			AND ($2::smallint IS NULL OR method = $2)
			AND ($3::smallint IS NULL OR status = $3)
			AND ($4::text IS NULL OR purpose = $4)
			AND ($5::timestamptz IS NULL OR paid_at >= $5)
			AND ($6::timestamptz IS NULL OR paid_at <= $6)
		ORDER BY created_at DESC`,
		f.LeadID, method, status, purpose, f.PaidFrom, f.PaidTo,
	)
	if err != nil {
		return nil, mapError("list payments", paymentNotFoundMsg, err)
	}
	defer rows.Close()

	items := make([]domain.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("scan payment", paymentNotFoundMsg, err)
		}
		items = append(items, p)
	}
	return items, mapError("list payments", paymentNotFoundMsg, rows.Err())
}

func (r *Repo) CountPayments(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE lead_id = $1 AND purpose = $2`,
		leadID, string(purpose)).Scan(&count)
	return count, mapError("count payments", paymentNotFoundMsg, err)
}

func (r *Repo) EarliestPayment(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (domain.Payment, bool, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE lead_id = $1 AND purpose = $2
			AND created_at = (SELECT MIN(created_at) FROM payments WHERE lead_id = $1 AND purpose = $2)
		ORDER BY id
		LIMIT 1`, leadID, string(purpose)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, false, nil
	}
	if err != nil {
		return domain.Payment{}, false, mapError("earliest payment", paymentNotFoundMsg, err)
	}
	return p, true, nil
}

func (r *Repo) SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1`, id, int16(status))
	if err != nil {
		return mapError("set payment status", paymentNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("set payment status", paymentNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) SetPaymentStatusByPurpose(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose, status domain.PaymentStatus) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE payments SET status = $3, updated_at = now()
		WHERE lead_id = $1 AND purpose = $2`, leadID, string(purpose), int16(status))
	if err != nil {
		return 0, mapError("set payment status by purpose", paymentNotFoundMsg, err)
	}
	return tag.RowsAffected(), nil
}
