package repository

import (
	"context"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const plotNotFoundMsg = "plot not found"

var (
	_ ports.PlotCatalog       = (*Repo)(nil)
	_ ports.IdentityDirectory = (*Repo)(nil)
)

// GetPlot reads price and area as integer hundredths.
func (r *Repo) GetPlot(ctx context.Context, id uuid.UUID) (ports.Plot, error) {
	var p ports.Plot
	err := r.q.QueryRow(ctx, `
		SELECT id, (price * 100)::bigint, (area_size * 100)::bigint, is_sold
		FROM plots WHERE id = $1`, id).Scan(&p.ID, &p.PriceCents, &p.AreaHundredths, &p.IsSold)
	if err != nil {
		return ports.Plot{}, mapError("get plot", plotNotFoundMsg, err)
	}
	return p, nil
}

func (r *Repo) MarkPlotSold(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE plots SET is_sold = true WHERE id = $1`, id)
	if err != nil {
		return mapError("mark plot sold", plotNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("mark plot sold", plotNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, mapError("user exists", "user not found", err)
}

func (r *Repo) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, mapError("customer exists", "customer not found", err)
}

// OfficerPerformance counts approved requests including those since completed.
func (r *Repo) OfficerPerformance(ctx context.Context, officerID uuid.UUID) (domain.OfficerPerformance, error) {
	perf := domain.OfficerPerformance{OfficerID: officerID, LeadsByStage: make(map[domain.Stage]int)}

	rows, err := r.q.Query(ctx, `
		SELECT current_stage, COUNT(*)
		FROM crm_leads
		WHERE assigned_officer_id = $1
		GROUP BY current_stage`, officerID)
	if err != nil {
		return perf, mapError("officer leads by stage", "", err)
	}
	for rows.Next() {
		var stage *int16
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			rows.Close()
			return perf, mapError("scan officer stage count", "", err)
		}
		if stage == nil {
			perf.LeadsWithoutStage = count
			continue
		}
		perf.LeadsByStage[domain.Stage(*stage)] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return perf, mapError("officer leads by stage", "", err)
	}

	err = r.q.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE r.approval_state IN ($2, $3)),
			COUNT(*) FILTER (WHERE r.approval_state = $4),
			COUNT(*) FILTER (WHERE r.approval_state IN ($5, $6))
		FROM status_change_requests r
		JOIN crm_leads l ON l.id = r.lead_id
		WHERE l.assigned_officer_id = $1`,
		officerID,
		int16(domain.ApprovalApproved), int16(domain.ApprovalCompleted),
		int16(domain.ApprovalRejected),
		int16(domain.ApprovalPending), int16(domain.ApprovalUnderReview),
	).Scan(&perf.ApprovedRequests, &perf.RejectedRequests, &perf.PendingRequests)
	if err != nil {
		return perf, mapError("officer request counts", "", err)
	}

	err = r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount_cents), 0)::bigint
		FROM payments p
		JOIN crm_leads l ON l.id = p.lead_id
		WHERE l.assigned_officer_id = $1 AND p.status = $2`,
		officerID, int16(domain.PaymentCompleted),
	).Scan(&perf.CompletedPaymentsCents)
	if err != nil {
		return perf, mapError("officer payment total", "", err)
	}

	return perf, nil
}
