// Package workflow keeps a lead's stage, its approval state, the status change
// requests and the payment statuses consistent. Every entry point runs on a
// repository.Store supplied by the caller, which is expected to be inside a
// transaction.
package workflow

import (
	"estate_crm_backend/internal/crm/domain"

	"github.com/google/uuid"
)

// Event is a trigger the coordinator reacts to. The set is closed.
type Event interface {
	trigger() trigger
}

type trigger string

const (
	triggerVisit          trigger = "visit_logged"
	triggerTokenPayment   trigger = "token_payment"
	triggerBalancePayment trigger = "balance_payment"
	triggerStageEdit      trigger = "stage_edited"
	triggerDecision       trigger = "approval_decided"
)

// VisitLogged fires after a site visit row is inserted.
type VisitLogged struct {
	LeadID uuid.UUID
}

// PaymentRecorded fires after a payment row is inserted.
type PaymentRecorded struct {
	LeadID  uuid.UUID
	Purpose domain.PaymentPurpose
}

// StageEdited is a manual move of the lead to Stage with a Pending approval.
type StageEdited struct {
	LeadID  uuid.UUID
	Stage   domain.Stage
	Remarks string
}

// ApprovalDecided records an approver's decision on a status change request.
type ApprovalDecided struct {
	RequestID uuid.UUID
	Outcome   domain.ApprovalState
	Remarks   string
}

func (VisitLogged) trigger() trigger { return triggerVisit }

func (e PaymentRecorded) trigger() trigger {
	if e.Purpose == domain.PurposeBalance {
		return triggerBalancePayment
	}
	return triggerTokenPayment
}

func (StageEdited) trigger() trigger     { return triggerStageEdit }
func (ApprovalDecided) trigger() trigger { return triggerDecision }
