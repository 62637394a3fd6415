package workflow

import (
	"context"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// cascade pushes a decided payment status onto the payments tied to a stage.
type cascade func(ctx context.Context, store repository.Store, leadID uuid.UUID, status domain.PaymentStatus) (int64, error)

var stageCascades = map[domain.Stage]cascade{
	domain.StageTokenAdvance: cascadeEarliest(domain.PurposeToken),
	domain.StagePayment:      cascadeAll(domain.PurposeBalance),
}

// Only final outcomes touch payments.
var outcomePaymentStatus = map[domain.ApprovalState]domain.PaymentStatus{
	domain.ApprovalApproved: domain.PaymentCompleted,
	domain.ApprovalRejected: domain.PaymentFailed,
}

func cascadeEarliest(purpose domain.PaymentPurpose) cascade {
	return func(ctx context.Context, store repository.Store, leadID uuid.UUID, status domain.PaymentStatus) (int64, error) {
		p, ok, err := store.EarliestPayment(ctx, leadID, purpose)
		if err != nil || !ok {
			return 0, err
		}
		if err := store.SetPaymentStatus(ctx, p.ID, status); err != nil {
			return 0, err
		}
		return 1, nil
	}
}

func cascadeAll(purpose domain.PaymentPurpose) cascade {
	return func(ctx context.Context, store repository.Store, leadID uuid.UUID, status domain.PaymentStatus) (int64, error) {
		return store.SetPaymentStatusByPurpose(ctx, leadID, purpose, status)
	}
}

// decide locks the lead before the request so that it takes locks in the
// same order as openRequest.
func (c *Coordinator) decide(ctx context.Context, store repository.Store, actorID *uuid.UUID, e ApprovalDecided) (Result, error) {
	const op = "workflow.decide"

	peek, err := store.GetStatusRequest(ctx, e.RequestID)
	if err != nil {
		return Result{}, err
	}
	lead, err := store.GetLeadForUpdate(ctx, peek.LeadID)
	if err != nil {
		return Result{}, err
	}
	req, err := store.GetStatusRequestForUpdate(ctx, e.RequestID)
	if err != nil {
		return Result{}, err
	}

	if !req.Approval.CanTransition(e.Outcome) {
		return Result{}, apperr.InvalidTransition("request cannot move from "+req.Approval.String()+" to "+e.Outcome.String()).
			WithOp(op).
			WithDetails(map[string]string{"from": req.Approval.String(), "to": e.Outcome.String()})
	}

	now := c.now()
	req.Approval = e.Outcome
	req.ActionedBy = actorID
	if e.Remarks != "" {
		req.Remarks = e.Remarks
	}
	switch e.Outcome {
	case domain.ApprovalApproved:
		if req.ApprovedAt == nil {
			req.ApprovedAt = &now
		}
	case domain.ApprovalRejected:
		if req.RejectedAt == nil {
			req.RejectedAt = &now
		}
	}
	req.UpdatedAt = now

	if err := store.UpdateStatusDecision(ctx, req); err != nil {
		return Result{}, err
	}

	if lead.CurrentStage != nil && *lead.CurrentStage == req.RequestedStage {
		latest, ok, err := store.LatestStatusRequest(ctx, lead.ID, req.RequestedStage)
		if err != nil {
			return Result{}, err
		}
		if ok && latest.ID == req.ID {
			if err := store.SetLeadWorkflow(ctx, lead.ID, req.RequestedStage, req.Approval); err != nil {
				return Result{}, err
			}
			approval := req.Approval
			lead.CurrentApproval = &approval
			lead.UpdatedAt = now
		}
	}

	var updated int64
	if status, ok := outcomePaymentStatus[e.Outcome]; ok {
		if apply, ok := stageCascades[req.RequestedStage]; ok {
			updated, err = apply(ctx, store, lead.ID, status)
			if err != nil {
				return Result{}, err
			}
		}
	}

	if c.log != nil {
		c.log.WithContext(ctx).WorkflowTransition(lead.ID.String(), string(triggerDecision), req.RequestedStage.String(), req.Approval.String())
	}
	return Result{Lead: lead, Request: &req, PaymentsUpdated: updated}, nil
}
