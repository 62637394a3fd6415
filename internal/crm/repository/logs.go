package repository

import (
	"context"

	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

func (r *Repo) AppendStatusLog(ctx context.Context, e domain.StatusLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO lead_status_logs (id, lead_id, previous_stage, new_stage, changed_by, remarks, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.LeadID, stageArg(e.PreviousStage), int16(e.NewStage), e.ChangedBy, e.Remarks, e.ChangedAt,
	)
	return mapError("append status log", leadNotFoundMsg, err)
}

func (r *Repo) ListStatusLogs(ctx context.Context, leadID uuid.UUID) ([]domain.StatusLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, lead_id, previous_stage, new_stage, changed_by, remarks, changed_at
		FROM lead_status_logs
		WHERE lead_id = $1
		ORDER BY changed_at, id`, leadID)
	if err != nil {
		return nil, mapError("list status logs", leadNotFoundMsg, err)
	}
	defer rows.Close()

	items := make([]domain.StatusLog, 0)
	for rows.Next() {
		var e domain.StatusLog
		var prev *int16
		var next int16
		if err := rows.Scan(&e.ID, &e.LeadID, &prev, &next, &e.ChangedBy, &e.Remarks, &e.ChangedAt); err != nil {
			return nil, mapError("scan status log", leadNotFoundMsg, err)
		}
		if prev != nil {
			s := domain.Stage(*prev)
			e.PreviousStage = &s
		}
		e.NewStage = domain.Stage(next)
		items = append(items, e)
	}
	return items, mapError("list status logs", leadNotFoundMsg, rows.Err())
}
