package service

import (
	"context"
	"time"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/phone"
	"estate_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// SiteVisitService records pickup/drop visits.
type SiteVisitService struct {
	Deps
	phones *phone.Normalizer
}

// NewSiteVisitService creates a site visit service.
func NewSiteVisitService(deps Deps, phones *phone.Normalizer) *SiteVisitService {
	return &SiteVisitService{Deps: deps, phones: phones}
}

func (s *SiteVisitService) normalizePhone(raw string) (string, error) {
	normalized, err := s.phones.E164(raw)
	if err != nil {
		return "", apperr.Validation("invalid contact phone").
			WithDetails(map[string]string{"contactPhone": "invalid phone number"})
	}
	return normalized, nil
}

// Create inserts a visit and moves the lead to the site visit stage.
func (s *SiteVisitService) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateSiteVisitRequest) (transport.SiteVisitResponse, error) {
	contact, err := s.normalizePhone(req.ContactPhone)
	if err != nil {
		return transport.SiteVisitResponse{}, err
	}

	now := s.now()
	visit := domain.SiteVisit{
		ID:            uuid.New(),
		LeadID:        req.LeadID,
		IsPickup:      req.IsPickup,
		PickupAddress: sanitize.Text(req.PickupAddress),
		PickupDate:    req.PickupDate,
		IsDrop:        req.IsDrop,
		DropAddress:   sanitize.Text(req.DropAddress),
		ContactPhone:  contact,
		Feedback:      sanitize.Text(req.Feedback),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.inTx(ctx, func(tx repository.Store, out *emitter) error {
		if err := tx.CreateSiteVisit(ctx, visit); err != nil {
			return err
		}
		res, err := s.Flow.Handle(ctx, tx, &actorID, workflow.VisitLogged{LeadID: visit.LeadID})
		if err != nil {
			return err
		}
		out.emit(events.SiteVisitLogged{BaseEvent: events.NewBaseEvent(), LeadID: visit.LeadID, SiteVisitID: visit.ID})
		out.workflowResult(res)
		return nil
	})
	if err != nil {
		return transport.SiteVisitResponse{}, err
	}
	return toSiteVisitResponse(visit), nil
}

// Update edits logistics fields. It never touches the workflow.
func (s *SiteVisitService) Update(ctx context.Context, id uuid.UUID, req transport.UpdateSiteVisitRequest) (transport.SiteVisitResponse, error) {
	var contact *string
	if req.ContactPhone != nil {
		normalized, err := s.normalizePhone(*req.ContactPhone)
		if err != nil {
			return transport.SiteVisitResponse{}, err
		}
		contact = &normalized
	}

	var visit domain.SiteVisit
	err := s.inTx(ctx, func(tx repository.Store, _ *emitter) error {
		current, err := tx.GetSiteVisit(ctx, id)
		if err != nil {
			return err
		}
		visit = current
		if req.IsPickup != nil {
			visit.IsPickup = *req.IsPickup
		}
		if v := sanitize.TextPtr(req.PickupAddress); v != nil {
			visit.PickupAddress = *v
		}
		if req.PickupDate != nil {
			visit.PickupDate = req.PickupDate
		}
		if req.IsDrop != nil {
			visit.IsDrop = *req.IsDrop
		}
		if v := sanitize.TextPtr(req.DropAddress); v != nil {
			visit.DropAddress = *v
		}
		if contact != nil {
			visit.ContactPhone = *contact
		}
		if v := sanitize.TextPtr(req.Feedback); v != nil {
			visit.Feedback = *v
		}
		visit.UpdatedAt = s.now()
		return tx.UpdateSiteVisit(ctx, visit)
	})
	if err != nil {
		return transport.SiteVisitResponse{}, err
	}
	return toSiteVisitResponse(visit), nil
}

// Get returns a visit by id.
func (s *SiteVisitService) Get(ctx context.Context, id uuid.UUID) (transport.SiteVisitResponse, error) {
	v, err := s.Repo.GetSiteVisit(ctx, id)
	if err != nil {
		return transport.SiteVisitResponse{}, err
	}
	return toSiteVisitResponse(v), nil
}

// List returns visits matching the filter.
func (s *SiteVisitService) List(ctx context.Context, req transport.ListSiteVisitsRequest) (transport.SiteVisitListResponse, error) {
	filter := repository.SiteVisitFilter{
		LeadID:   parseUUIDFilter(req.LeadID),
		IsPickup: req.IsPickup,
		IsDrop:   req.IsDrop,
	}
	if req.PickupDate != "" {
		day, err := time.Parse(transport.DateLayout, req.PickupDate)
		if err != nil {
			return transport.SiteVisitListResponse{}, apperr.Validation("malformed date").
				WithDetails(map[string]string{"pickupDate": "expected " + transport.DateLayout})
		}
		filter.PickupDate = &day
	}

	items, err := s.Repo.ListSiteVisits(ctx, filter)
	if err != nil {
		return transport.SiteVisitListResponse{}, err
	}
	return transport.SiteVisitListResponse{Items: mapAll(items, toSiteVisitResponse), Total: len(items)}, nil
}
