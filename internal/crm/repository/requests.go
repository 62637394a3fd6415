package repository

import (
	"context"
	"errors"

	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	requestNotFoundMsg = "status change request not found"

	requestColumns = `id, lead_id, requested_by, actioned_by, requested_stage, approval_state, remarks,
		requested_at, approved_at, rejected_at, updated_at`
)

func scanRequest(row pgx.Row) (domain.StatusChangeRequest, error) {
	var req domain.StatusChangeRequest
	var stage, approval int16
	err := row.Scan(
		&req.ID, &req.LeadID, &req.RequestedBy, &req.ActionedBy, &stage, &approval, &req.Remarks,
		&req.RequestedAt, &req.ApprovedAt, &req.RejectedAt, &req.UpdatedAt,
	)
	req.RequestedStage = domain.Stage(stage)
	req.Approval = domain.ApprovalState(approval)
	return req, err
}

func (r *Repo) CreateStatusRequest(ctx context.Context, req domain.StatusChangeRequest) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO status_change_requests (
			id, lead_id, requested_by, actioned_by, requested_stage, approval_state, remarks,
			requested_at, approved_at, rejected_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.LeadID, req.RequestedBy, req.ActionedBy, int16(req.RequestedStage), int16(req.Approval),
		req.Remarks, req.RequestedAt, req.ApprovedAt, req.RejectedAt, req.UpdatedAt,
	)
	return mapError("create status change request", requestNotFoundMsg, err)
}

func (r *Repo) GetStatusRequest(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error) {
	req, err := scanRequest(r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM status_change_requests WHERE id = $1`, id))
	if err != nil {
		return domain.StatusChangeRequest{}, mapError("get status change request", requestNotFoundMsg, err)
	}
	return req, nil
}

func (r *Repo) GetStatusRequestForUpdate(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error) {
	req, err := scanRequest(r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM status_change_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.StatusChangeRequest{}, mapError("lock status change request", requestNotFoundMsg, err)
	}
	return req, nil
}

// UpdateStatusDecision never clears a decision timestamp once written.
func (r *Repo) UpdateStatusDecision(ctx context.Context, req domain.StatusChangeRequest) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE status_change_requests SET
			approval_state = $2,
			actioned_by = $3,
			remarks = $4,
			approved_at = COALESCE(approved_at, $5),
			rejected_at = COALESCE(rejected_at, $6),
			updated_at = $7
		WHERE id = $1`,
		req.ID, int16(req.Approval), req.ActionedBy, req.Remarks, req.ApprovedAt, req.RejectedAt, req.UpdatedAt,
	)
	if err != nil {
		return mapError("decide status change request", requestNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("decide status change request", requestNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) ListStatusRequests(ctx context.Context, f StatusRequestFilter) ([]domain.StatusChangeRequest, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+requestColumns+`
		FROM status_change_requests
		WHERE ($1::uuid IS NULL OR lead_id = $1)
			AND ($2::uuid IS NULL OR requested_by = $2)
			AND ($3::uuid IS NULL OR actioned_by = $3)
			AND ($4::smallint IS NULL OR requested_stage = $4)
			AND ($5::smallint IS NULL OR approval_state = $5)
		ORDER BY requested_at DESC, id DESC`,
		f.LeadID, f.RequestedBy, f.ActionedBy, stageArg(f.Stage), approvalArg(f.Approval),
	)
	if err != nil {
		return nil, mapError("list status change requests", requestNotFoundMsg, err)
	}
	defer rows.Close()

	items := make([]domain.StatusChangeRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, mapError("scan status change request", requestNotFoundMsg, err)
		}
		items = append(items, req)
	}
	return items, mapError("list status change requests", requestNotFoundMsg, rows.Err())
}

func (r *Repo) LatestStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error) {
	return r.findRequest(ctx, "latest status change request", `
		SELECT `+requestColumns+`
		FROM status_change_requests
		WHERE lead_id = $1 AND requested_stage = $2
		ORDER BY requested_at DESC, id DESC
		LIMIT 1`, leadID, int16(stage))
}

func (r *Repo) LiveStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error) {
	return r.findRequest(ctx, "live status change request", `
		SELECT `+requestColumns+`
		FROM status_change_requests
		WHERE lead_id = $1 AND requested_stage = $2 AND approval_state IN ($3, $4)
		ORDER BY requested_at DESC, id DESC
		LIMIT 1`, leadID, int16(stage), int16(domain.ApprovalPending), int16(domain.ApprovalUnderReview))
}

func (r *Repo) findRequest(ctx context.Context, op, query string, args ...interface{}) (domain.StatusChangeRequest, bool, error) {
	req, err := scanRequest(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StatusChangeRequest{}, false, nil
	}
	if err != nil {
		return domain.StatusChangeRequest{}, false, mapError(op, requestNotFoundMsg, err)
	}
	return req, true, nil
}
