package service

import (
	"context"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// StatusRequestService opens, reads and decides status change requests.
// Every request is opened through the workflow coordinator.
type StatusRequestService struct {
	Deps
}

// NewStatusRequestService creates a status request service.
func NewStatusRequestService(deps Deps) *StatusRequestService {
	return &StatusRequestService{Deps: deps}
}

// Get returns a request by id.
func (s *StatusRequestService) Get(ctx context.Context, id uuid.UUID) (transport.StatusRequestResponse, error) {
	r, err := s.Repo.GetStatusRequest(ctx, id)
	if err != nil {
		return transport.StatusRequestResponse{}, err
	}
	return toStatusRequestResponse(r), nil
}

// List returns requests matching the filter, newest first.
func (s *StatusRequestService) List(ctx context.Context, req transport.ListStatusRequestsRequest) (transport.StatusRequestListResponse, error) {
	filter := repository.StatusRequestFilter{
		LeadID:      parseUUIDFilter(req.LeadID),
		RequestedBy: parseUUIDFilter(req.RequestedBy),
		ActionedBy:  parseUUIDFilter(req.ActionedBy),
	}
	if req.Stage != "" {
		stage, err := domain.ParseStage(req.Stage)
		if err != nil {
			return transport.StatusRequestListResponse{}, apperr.Validation(err.Error())
		}
		filter.Stage = &stage
	}
	if req.Approval != "" {
		approval, err := domain.ParseApprovalState(req.Approval)
		if err != nil {
			return transport.StatusRequestListResponse{}, apperr.Validation(err.Error())
		}
		filter.Approval = &approval
	}

	items, err := s.Repo.ListStatusRequests(ctx, filter)
	if err != nil {
		return transport.StatusRequestListResponse{}, err
	}
	return transport.StatusRequestListResponse{Items: mapAll(items, toStatusRequestResponse), Total: len(items)}, nil
}

// Create opens a status change request through the workflow, which also moves
// the lead to the requested stage. A live request for the same lead and stage
// is returned instead of a duplicate; opened reports which happened.
func (s *StatusRequestService) Create(ctx context.Context, actorID uuid.UUID, req transport.CreateStatusRequestRequest) (resp transport.StatusRequestResponse, opened bool, err error) {
	stage, err := domain.ParseStage(req.RequestedStage)
	if err != nil {
		return transport.StatusRequestResponse{}, false, apperr.Validation("unknown stage").
			WithDetails(map[string]string{"requestedStage": "unknown"})
	}

	var res workflow.Result
	err = s.inTx(ctx, func(tx repository.Store, out *emitter) error {
		if _, err := tx.GetLead(ctx, req.LeadID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("referenced record does not exist").
					WithDetails(map[string]string{"leadId": "does not exist"})
			}
			return err
		}
		var err error
		res, err = s.Flow.Handle(ctx, tx, &actorID, workflow.StageEdited{LeadID: req.LeadID, Stage: stage, Remarks: sanitize.Text(req.Remarks)})
		if err != nil {
			return err
		}
		out.workflowResult(res)
		return nil
	})
	if err != nil {
		return transport.StatusRequestResponse{}, false, err
	}
	return toStatusRequestResponse(*res.Request), res.Opened, nil
}

// Decide records an approver's outcome, propagates it to the lead and runs
// the payment cascade, all in one transaction.
func (s *StatusRequestService) Decide(ctx context.Context, actorID uuid.UUID, id uuid.UUID, req transport.DecideStatusRequest) (transport.DecisionResponse, error) {
	outcome, err := domain.ParseApprovalState(req.Outcome)
	if err != nil {
		return transport.DecisionResponse{}, apperr.Validation("unknown outcome").
			WithDetails(map[string]string{"outcome": "unknown"})
	}

	var res workflow.Result
	err = s.inTx(ctx, func(tx repository.Store, out *emitter) error {
		var err error
		res, err = s.Flow.Handle(ctx, tx, &actorID, workflow.ApprovalDecided{RequestID: id, Outcome: outcome, Remarks: req.Remarks})
		if err != nil {
			return err
		}
		out.emit(events.StatusChangeDecided{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          res.Request.LeadID,
			RequestID:       res.Request.ID,
			Stage:           res.Request.RequestedStage.String(),
			Approval:        res.Request.Approval.String(),
			ActionedBy:      res.Request.ActionedBy,
			PaymentsUpdated: res.PaymentsUpdated,
		})
		return nil
	})
	if err != nil {
		return transport.DecisionResponse{}, err
	}

	s.Log.Info("status change decided", "requestId", id, "approval", outcome.String(), "paymentsUpdated", res.PaymentsUpdated)
	return transport.DecisionResponse{
		Request:         toStatusRequestResponse(*res.Request),
		Lead:            toLeadResponse(res.Lead),
		PaymentsUpdated: res.PaymentsUpdated,
	}, nil
}
