package repository

import (
	"context"
	"time"

	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	leadNotFoundMsg = "lead not found"

	leadColumns = `id, property_id, phase_id, plot_id, customer_id, assigned_officer_id, initial_contact_date,
		total_amount_cents, current_stage, current_approval_state, details, is_active, created_at, updated_at`
)

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var stage, approval *int16
	err := row.Scan(
		&l.ID, &l.PropertyID, &l.PhaseID, &l.PlotID, &l.CustomerID, &l.AssignedOfficerID, &l.InitialContactDate,
		&l.TotalAmountCents, &stage, &approval, &l.Details, &l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	if stage != nil {
		s := domain.Stage(*stage)
		l.CurrentStage = &s
	}
	if approval != nil {
		a := domain.ApprovalState(*approval)
		l.CurrentApproval = &a
	}
	if l.Details == nil {
		l.Details = map[string]any{}
	}
	return l, nil
}

func detailsArg(details map[string]any) map[string]any {
	if details == nil {
		return map[string]any{}
	}
	return details
}

func (r *Repo) CreateLead(ctx context.Context, lead domain.Lead) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO crm_leads (
			id, property_id, phase_id, plot_id, customer_id, assigned_officer_id, initial_contact_date,
			total_amount_cents, details, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lead.ID, lead.PropertyID, lead.PhaseID, lead.PlotID, lead.CustomerID, lead.AssignedOfficerID,
		lead.InitialContactDate, lead.TotalAmountCents, detailsArg(lead.Details), lead.IsActive,
		lead.CreatedAt, lead.UpdatedAt,
	)
	return mapError("create lead", leadNotFoundMsg, err)
}

func (r *Repo) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.q.QueryRow(ctx, `SELECT `+leadColumns+` FROM crm_leads WHERE id = $1`, id))
	if err != nil {
		return domain.Lead{}, mapError("get lead", leadNotFoundMsg, err)
	}
	return lead, nil
}

func (r *Repo) GetLeadForUpdate(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.q.QueryRow(ctx, `SELECT `+leadColumns+` FROM crm_leads WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Lead{}, mapError("lock lead", leadNotFoundMsg, err)
	}
	return lead, nil
}

func (r *Repo) UpdateLead(ctx context.Context, lead domain.Lead) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE crm_leads SET
			property_id = $2, phase_id = $3, plot_id = $4, customer_id = $5, assigned_officer_id = $6,
			initial_contact_date = $7, total_amount_cents = $8, details = $9, is_active = $10, updated_at = $11
		WHERE id = $1`,
		lead.ID, lead.PropertyID, lead.PhaseID, lead.PlotID, lead.CustomerID, lead.AssignedOfficerID,
		lead.InitialContactDate, lead.TotalAmountCents, detailsArg(lead.Details), lead.IsActive, lead.UpdatedAt,
	)
	if err != nil {
		return mapError("update lead", leadNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("update lead", leadNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) SetLeadWorkflow(ctx context.Context, id uuid.UUID, stage domain.Stage, approval domain.ApprovalState) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE crm_leads SET current_stage = $2, current_approval_state = $3, updated_at = now()
		WHERE id = $1`, id, int16(stage), int16(approval))
	if err != nil {
		return mapError("set lead workflow", leadNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("set lead workflow", leadNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) ListLeads(ctx context.Context, f LeadFilter) ([]domain.Lead, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+leadColumns+`
		FROM crm_leads
		WHERE ($1::uuid IS NULL OR property_id = $1)
			AND ($2::uuid IS NULL OR phase_id = $2)
			AND ($3::uuid IS NULL OR plot_id = $3)
			AND ($4::uuid IS NULL OR customer_id = $4)
			AND ($5::uuid IS NULL OR assigned_officer_id = $5)
			AND ($6::smallint IS NULL OR current_stage = $6)
			AND ($7::smallint IS NULL OR current_approval_state = $7)
			AND ($8::boolean IS NULL OR is_active = $8)
		ORDER BY created_at DESC`,
		f.PropertyID, f.PhaseID, f.PlotID, f.CustomerID, f.OfficerID,
		stageArg(f.Stage), approvalArg(f.Approval), f.IsActive,
	)
	if err != nil {
		return nil, mapError("list leads", leadNotFoundMsg, err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, mapError("scan lead", leadNotFoundMsg, err)
		}
		leads = append(leads, lead)
	}
	return leads, mapError("list leads", leadNotFoundMsg, rows.Err())
}

func (r *Repo) DeactivateStaleLeads(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		WITH stale AS (
			SELECT id FROM crm_leads
			WHERE is_active AND updated_at < $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE crm_leads l SET is_active = false, updated_at = now()
		FROM stale
		WHERE l.id = stale.id`, before)
	if err != nil {
		return 0, mapError("deactivate stale leads", leadNotFoundMsg, err)
	}
	return tag.RowsAffected(), nil
}

func stageArg(s *domain.Stage) *int16 {
	if s == nil {
		return nil
	}
	v := int16(*s)
	return &v
}

func approvalArg(a *domain.ApprovalState) *int16 {
	if a == nil {
		return nil
	}
	v := int16(*a)
	return &v
}
