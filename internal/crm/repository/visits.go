package repository

import (
	"context"

	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	visitNotFoundMsg = "site visit not found"

	visitColumns = `id, lead_id, is_pickup, pickup_address, pickup_date, is_drop, drop_address, contact_phone,
		feedback, created_at, updated_at`
)

func scanVisit(row pgx.Row) (domain.SiteVisit, error) {
	var v domain.SiteVisit
	err := row.Scan(
		&v.ID, &v.LeadID, &v.IsPickup, &v.PickupAddress, &v.PickupDate, &v.IsDrop, &v.DropAddress, &v.ContactPhone,
		&v.Feedback, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

func (r *Repo) CreateSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO site_visits (
			id, lead_id, is_pickup, pickup_address, pickup_date, is_drop, drop_address, contact_phone,
			feedback, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		v.ID, v.LeadID, v.IsPickup, v.PickupAddress, v.PickupDate, v.IsDrop, v.DropAddress, v.ContactPhone,
		v.Feedback, v.CreatedAt, v.UpdatedAt,
	)
	return mapError("create site visit", visitNotFoundMsg, err)
}

func (r *Repo) GetSiteVisit(ctx context.Context, id uuid.UUID) (domain.SiteVisit, error) {
	v, err := scanVisit(r.q.QueryRow(ctx, `SELECT `+visitColumns+` FROM site_visits WHERE id = $1`, id))
	if err != nil {
		return domain.SiteVisit{}, mapError("get site visit", visitNotFoundMsg, err)
	}
	return v, nil
}

func (r *Repo) UpdateSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE site_visits SET
			is_pickup = $2, pickup_address = $3, pickup_date = $4, is_drop = $5, drop_address = $6,
			contact_phone = $7, feedback = $8, updated_at = $9
		WHERE id = $1`,
		v.ID, v.IsPickup, v.PickupAddress, v.PickupDate, v.IsDrop, v.DropAddress, v.ContactPhone, v.Feedback, v.UpdatedAt,
	)
	if err != nil {
		return mapError("update site visit", visitNotFoundMsg, err)
	}
	if tag.RowsAffected() == 0 {
		return mapError("update site visit", visitNotFoundMsg, pgx.ErrNoRows)
	}
	return nil
}

func (r *Repo) ListSiteVisits(ctx context.Context, f SiteVisitFilter) ([]domain.SiteVisit, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+visitColumns+`
		FROM site_visits
		WHERE ($1::uuid IS NULL OR lead_id = $1)
			AND ($2::boolean IS NULL OR is_pickup = $2)
			AND ($3::boolean IS NULL OR is_drop = $3)
			AND ($4::date IS NULL OR (pickup_date AT TIME ZONE 'UTC')::date = $4)
		ORDER BY created_at DESC`,
		f.LeadID, f.IsPickup, f.IsDrop, f.PickupDate,
	)
	if err != nil {
		return nil, mapError("list site visits", visitNotFoundMsg, err)
	}
	defer rows.Close()

	items := make([]domain.SiteVisit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, mapError("scan site visit", visitNotFoundMsg, err)
		}
		items = append(items, v)
	}
	return items, mapError("list site visits", visitNotFoundMsg, rows.Err())
}
