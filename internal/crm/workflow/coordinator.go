package workflow

import (
	"context"
	"fmt"
	"time"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Result describes what one event changed.
type Result struct {
	Lead domain.Lead
	// Request is the request opened, reused or decided. Nil when nothing was opened.
	Request *domain.StatusChangeRequest
	// Opened is true when a new request row was inserted.
	Opened bool
	// PaymentsUpdated counts payments touched by the approval cascade.
	PaymentsUpdated int64
}

// Coordinator applies workflow events.
type Coordinator struct {
	log *logger.Logger
	now func() time.Time
}

// New creates a coordinator.
func New(log *logger.Logger) *Coordinator {
	return &Coordinator{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Which stage each trigger opens.
var triggerStages = map[trigger]domain.Stage{
	triggerVisit:          domain.StageSiteVisit,
	triggerTokenPayment:   domain.StageTokenAdvance,
	triggerBalancePayment: domain.StagePayment,
}

// guard decides whether a trigger should open its stage at all.
type guard func(ctx context.Context, store repository.Store, leadID uuid.UUID) (bool, error)

var triggerGuards = map[trigger]guard{
	// Only the first balance installment opens the Payment stage.
	triggerBalancePayment: func(ctx context.Context, store repository.Store, leadID uuid.UUID) (bool, error) {
		n, err := store.CountPayments(ctx, leadID, domain.PurposeBalance)
		return n == 1, err
	},
}

// Handle applies one event. actorID is the authenticated user, nil for system actions.
func (c *Coordinator) Handle(ctx context.Context, store repository.Store, actorID *uuid.UUID, event Event) (Result, error) {
	switch e := event.(type) {
	case VisitLogged:
		return c.fromTrigger(ctx, store, e.LeadID, actorID, e.trigger())
	case PaymentRecorded:
		return c.fromTrigger(ctx, store, e.LeadID, actorID, e.trigger())
	case StageEdited:
		return c.fromStageEdit(ctx, store, actorID, e)
	case ApprovalDecided:
		return c.decide(ctx, store, actorID, e)
	default:
		return Result{}, fmt.Errorf("workflow: unsupported event %T", event)
	}
}

func (c *Coordinator) fromTrigger(ctx context.Context, store repository.Store, leadID uuid.UUID, actorID *uuid.UUID, t trigger) (Result, error) {
	stage, ok := triggerStages[t]
	if !ok {
		return Result{}, fmt.Errorf("workflow: no stage for trigger %s", t)
	}
	lead, err := store.GetLeadForUpdate(ctx, leadID)
	if err != nil {
		return Result{}, err
	}
	if g, ok := triggerGuards[t]; ok {
		pass, err := g(ctx, store, lead.ID)
		if err != nil {
			return Result{}, err
		}
		if !pass {
			return Result{Lead: lead}, nil
		}
	}
	return c.openRequest(ctx, store, lead, stage, actorID, t, "")
}

func (c *Coordinator) fromStageEdit(ctx context.Context, store repository.Store, actorID *uuid.UUID, e StageEdited) (Result, error) {
	if !e.Stage.Valid() {
		return Result{}, apperr.Validation("unknown stage").WithOp("workflow.stage_edited")
	}
	lead, err := store.GetLeadForUpdate(ctx, e.LeadID)
	if err != nil {
		return Result{}, err
	}
	return c.openRequest(ctx, store, lead, e.Stage, actorID, triggerStageEdit, e.Remarks)
}

// openRequest moves a locked lead to stage with a live request for it, in
// either direction. An existing live request for the stage is reused instead
// of inserting a duplicate.
func (c *Coordinator) openRequest(ctx context.Context, store repository.Store, lead domain.Lead, stage domain.Stage, actorID *uuid.UUID, t trigger, remarks string) (Result, error) {
	now := c.now()
	req, live, err := store.LiveStatusRequest(ctx, lead.ID, stage)
	if err != nil {
		return Result{}, err
	}
	if !live {
		requester := actorID
		if requester == nil {
			requester = lead.AssignedOfficerID
		}
		req = domain.StatusChangeRequest{
			ID:             uuid.New(),
			LeadID:         lead.ID,
			RequestedBy:    requester,
			RequestedStage: stage,
			Approval:       domain.ApprovalPending,
			Remarks:        remarks,
			RequestedAt:    now,
			UpdatedAt:      now,
		}
		if err := store.CreateStatusRequest(ctx, req); err != nil {
			return Result{}, err
		}
	}

	previous := lead.CurrentStage
	if err := store.SetLeadWorkflow(ctx, lead.ID, stage, req.Approval); err != nil {
		return Result{}, err
	}

	if previous == nil || *previous != stage {
		changedBy := actorID
		if changedBy == nil {
			changedBy = req.RequestedBy
		}
		entry := domain.StatusLog{
			ID:            uuid.New(),
			LeadID:        lead.ID,
			PreviousStage: previous,
			NewStage:      stage,
			ChangedBy:     changedBy,
			Remarks:       remarks,
			ChangedAt:     now,
		}
		if err := store.AppendStatusLog(ctx, entry); err != nil {
			return Result{}, err
		}
	}

	approval := req.Approval
	lead.CurrentStage = &stage
	lead.CurrentApproval = &approval
	lead.UpdatedAt = now

	if c.log != nil {
		c.log.WithContext(ctx).WorkflowTransition(lead.ID.String(), string(t), stage.String(), approval.String())
	}
	return Result{Lead: lead, Request: &req, Opened: !live}, nil
}
