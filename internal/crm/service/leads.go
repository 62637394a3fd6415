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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// LeadService manages lead records.
type LeadService struct {
	Deps
}

// NewLeadService creates a lead service.
func NewLeadService(deps Deps) *LeadService {
	return &LeadService{Deps: deps}
}

// leadPatch is an UpdateLeadRequest with every value parsed.
type leadPatch struct {
	propertyID  *uuid.UUID
	phaseID     transport.OptionalUUID
	plotID      *uuid.UUID
	customerID  *uuid.UUID
	officerID   transport.OptionalUUID
	contactDate *time.Time
	details     map[string]any
	isActive    *bool
	stage       *domain.Stage
	remarks     string
}

func parseLeadPatch(req transport.UpdateLeadRequest) (leadPatch, error) {
	p := leadPatch{
		propertyID: req.PropertyID,
		phaseID:    req.PhaseID,
		plotID:     req.PlotID,
		customerID: req.CustomerID,
		officerID:  req.AssignedOfficerID,
		details:    req.Details,
		isActive:   req.IsActive,
		remarks:    req.Remarks,
	}

	contact, err := parseDate("initialContactDate", req.InitialContactDate)
	if err != nil {
		return leadPatch{}, err
	}
	p.contactDate = contact

	if req.CurrentApproval != nil {
		if req.CurrentStage == nil {
			return leadPatch{}, apperr.Validation("approval is decided through status change requests").
				WithDetails(map[string]string{"currentApproval": "requires currentStage"})
		}
		approval, err := domain.ParseApprovalState(*req.CurrentApproval)
		if err != nil || approval != domain.ApprovalPending {
			return leadPatch{}, apperr.Validation("a manual stage edit always starts pending").
				WithDetails(map[string]string{"currentApproval": "must be pending"})
		}
	}
	if req.CurrentStage != nil {
		stage, err := domain.ParseStage(*req.CurrentStage)
		if err != nil {
			return leadPatch{}, apperr.Validation("unknown stage").
				WithDetails(map[string]string{"currentStage": "unknown"})
		}
		p.stage = &stage
	}
	return p, nil
}

func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(transport.DateLayout, *raw)
	if err != nil {
		return nil, apperr.Validation("malformed date").
			WithDetails(map[string]string{field: "expected " + transport.DateLayout})
	}
	return &t, nil
}

// Create inserts a lead with no stage. The assigned officer defaults to the
// acting user when that user is a known officer.
func (s *LeadService) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	contact, err := parseDate("initialContactDate", req.InitialContactDate)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	details := req.Details
	if details == nil {
		details = map[string]any{}
	}

	now := s.now()
	lead := domain.Lead{
		ID:                 uuid.New(),
		PropertyID:         req.PropertyID,
		PhaseID:            req.PhaseID,
		CustomerID:         req.CustomerID,
		AssignedOfficerID:  req.AssignedOfficerID,
		InitialContactDate: contact,
		Details:            details,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.inTx(ctx, func(tx repository.Store, _ *emitter) error {
		if err := checkRef(ctx, "customerId", lead.CustomerID, tx.CustomerExists); err != nil {
			return err
		}
		if lead.AssignedOfficerID != nil {
			if err := checkRef(ctx, "assignedOfficerId", *lead.AssignedOfficerID, tx.UserExists); err != nil {
				return err
			}
		} else if known, err := tx.UserExists(ctx, actorID); err != nil {
			return err
		} else if known {
			lead.AssignedOfficerID = &actorID
		}
		if req.PlotID != nil {
			if err := assignPlot(ctx, tx, &lead, *req.PlotID); err != nil {
				return err
			}
		}
		return tx.CreateLead(ctx, lead)
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	s.Log.Info("lead created", "id", lead.ID, "customerId", lead.CustomerID)
	return toLeadResponse(lead), nil
}

// Edit applies a partial update in one transaction: plot assignment, plain
// fields, then an optional manual stage edit through the workflow.
func (s *LeadService) Edit(ctx context.Context, actorID uuid.UUID, leadID uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	patch, err := parseLeadPatch(req)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	var lead domain.Lead
	err = s.inTx(ctx, func(tx repository.Store, out *emitter) error {
		current, err := tx.GetLeadForUpdate(ctx, leadID)
		if err != nil {
			return err
		}
		lead = current

		if patch.plotID != nil {
			if err := assignPlot(ctx, tx, &lead, *patch.plotID); err != nil {
				return err
			}
		}
		if err := s.applyFields(ctx, tx, &lead, patch); err != nil {
			return err
		}
		return s.applyStageEdit(ctx, tx, actorID, &lead, patch, out)
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

// assignPlot attaches a catalog plot, marks it sold and reprices the lead.
func assignPlot(ctx context.Context, tx repository.Store, lead *domain.Lead, plotID uuid.UUID) error {
	plot, err := tx.GetPlot(ctx, plotID)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Validation("referenced record does not exist").
			WithDetails(map[string]string{"plotId": "does not exist"})
	}
	if err != nil {
		return err
	}
	if plot.IsSold && (lead.PlotID == nil || *lead.PlotID != plot.ID) {
		return apperr.Validation("plot is already sold").
			WithDetails(map[string]string{"plotId": "already sold"})
	}
	if err := tx.MarkPlotSold(ctx, plot.ID); err != nil {
		return err
	}

	lead.PlotID = &plot.ID
	if plot.PriceCents != nil && plot.AreaHundredths != nil {
		lead.TotalAmountCents = domain.TotalAmountCents(*plot.PriceCents, *plot.AreaHundredths)
	}
	return nil
}

func (s *LeadService) applyFields(ctx context.Context, tx repository.Store, lead *domain.Lead, p leadPatch) error {
	if p.propertyID != nil {
		lead.PropertyID = *p.propertyID
	}
	if p.phaseID.Set {
		lead.PhaseID = p.phaseID.Value
	}
	if p.customerID != nil {
		if err := checkRef(ctx, "customerId", *p.customerID, tx.CustomerExists); err != nil {
			return err
		}
		lead.CustomerID = *p.customerID
	}
	if p.officerID.Set {
		if p.officerID.Value != nil {
			if err := checkRef(ctx, "assignedOfficerId", *p.officerID.Value, tx.UserExists); err != nil {
				return err
			}
		}
		lead.AssignedOfficerID = p.officerID.Value
	}
	if p.contactDate != nil {
		lead.InitialContactDate = p.contactDate
	}
	if p.details != nil {
		lead.Details = p.details
	}
	if p.isActive != nil {
		lead.IsActive = *p.isActive
	}
	lead.UpdatedAt = s.now()
	return tx.UpdateLead(ctx, *lead)
}

func (s *LeadService) applyStageEdit(ctx context.Context, tx repository.Store, actorID uuid.UUID, lead *domain.Lead, p leadPatch, out *emitter) error {
	if p.stage == nil {
		return nil
	}
	res, err := s.Flow.Handle(ctx, tx, &actorID, workflow.StageEdited{LeadID: lead.ID, Stage: *p.stage, Remarks: p.remarks})
	if err != nil {
		return err
	}
	out.workflowResult(res)
	*lead = res.Lead
	return nil
}

// Get returns a lead by id.
func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.Repo.GetLead(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return toLeadResponse(lead), nil
}

// List returns leads matching the filter, newest first.
func (s *LeadService) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	filter := repository.LeadFilter{
		PropertyID: parseUUIDFilter(req.PropertyID),
		PhaseID:    parseUUIDFilter(req.PhaseID),
		PlotID:     parseUUIDFilter(req.PlotID),
		CustomerID: parseUUIDFilter(req.CustomerID),
		OfficerID:  parseUUIDFilter(req.OfficerID),
		IsActive:   req.IsActive,
	}
	if req.Stage != "" {
		stage, err := domain.ParseStage(req.Stage)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation(err.Error())
		}
		filter.Stage = &stage
	}
	if req.Approval != "" {
		approval, err := domain.ParseApprovalState(req.Approval)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation(err.Error())
		}
		filter.Approval = &approval
	}

	items, err := s.Repo.ListLeads(ctx, filter)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	return transport.LeadListResponse{Items: mapAll(items, toLeadResponse), Total: len(items)}, nil
}

// Deactivate marks a lead inactive. Deactivating an inactive lead is a no-op.
func (s *LeadService) Deactivate(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	var lead domain.Lead
	err := s.inTx(ctx, func(tx repository.Store, _ *emitter) error {
		current, err := tx.GetLeadForUpdate(ctx, id)
		if err != nil {
			return err
		}
		lead = current
		if !lead.IsActive {
			return nil
		}
		lead.IsActive = false
		lead.UpdatedAt = s.now()
		return tx.UpdateLead(ctx, lead)
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}
	s.Log.Info("lead deactivated", "id", id)
	return toLeadResponse(lead), nil
}

// Overview loads a lead with its requests, payments, visits and status logs.
func (s *LeadService) Overview(ctx context.Context, id uuid.UUID) (transport.LeadOverviewResponse, error) {
	lead, err := s.Repo.GetLead(ctx, id)
	if err != nil {
		return transport.LeadOverviewResponse{}, err
	}

	var (
		requests []domain.StatusChangeRequest
		payments []domain.Payment
		visits   []domain.SiteVisit
		logs     []domain.StatusLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		requests, err = s.Repo.ListStatusRequests(gctx, repository.StatusRequestFilter{LeadID: &id})
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = s.Repo.ListPayments(gctx, repository.PaymentFilter{LeadID: &id})
		return err
	})
	g.Go(func() error {
		var err error
		visits, err = s.Repo.ListSiteVisits(gctx, repository.SiteVisitFilter{LeadID: &id})
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.Repo.ListStatusLogs(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.LeadOverviewResponse{}, err
	}

	return transport.LeadOverviewResponse{
		Lead:           toLeadResponse(lead),
		StatusRequests: mapAll(requests, toStatusRequestResponse),
		Payments:       mapAll(payments, toPaymentResponse),
		SiteVisits:     mapAll(visits, toSiteVisitResponse),
		StatusLogs:     mapAll(logs, toStatusLogResponse),
	}, nil
}

// Performance aggregates the pipeline of one sales officer.
func (s *LeadService) Performance(ctx context.Context, officerID uuid.UUID) (transport.OfficerPerformanceResponse, error) {
	known, err := s.Repo.UserExists(ctx, officerID)
	if err != nil {
		return transport.OfficerPerformanceResponse{}, err
	}
	if !known {
		return transport.OfficerPerformanceResponse{}, apperr.NotFound("officer not found")
	}

	perf, err := s.Repo.OfficerPerformance(ctx, officerID)
	if err != nil {
		return transport.OfficerPerformanceResponse{}, err
	}

	byStage := make(map[string]int, len(domain.StageNames()))
	for _, name := range domain.StageNames() {
		byStage[name] = 0
	}
	for stage, n := range perf.LeadsByStage {
		byStage[stage.String()] = n
	}
	return transport.OfficerPerformanceResponse{
		OfficerID:              perf.OfficerID,
		LeadsByStage:           byStage,
		LeadsWithoutStage:      perf.LeadsWithoutStage,
		ApprovedRequests:       perf.ApprovedRequests,
		RejectedRequests:       perf.RejectedRequests,
		PendingRequests:        perf.PendingRequests,
		CompletedPaymentsCents: perf.CompletedPaymentsCents,
	}, nil
}

// DeactivateStale flips is_active on active leads not updated since before.
// Both the scheduled sweep and the admin endpoint run through here.
func (s *LeadService) DeactivateStale(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.Repo.DeactivateStaleLeads(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 && s.Bus != nil {
		s.Bus.Publish(ctx, events.LeadsDeactivated{BaseEvent: events.NewBaseEvent(), Count: n})
	}
	s.Log.Info("stale leads deactivated", "count", n, "before", before)
	return n, nil
}
