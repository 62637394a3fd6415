package repository

import (
	"context"
	"errors"
	"time"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/ports"

	"github.com/google/uuid"
)

// ErrReferenceTaken is returned by CreatePayment when the backend reference
// already exists. The caller generates a new one and retries.
var ErrReferenceTaken = errors.New("backend reference already taken")

// LeadFilter narrows ListLeads. Nil fields do not filter.
type LeadFilter struct {
	PropertyID *uuid.UUID
	PhaseID    *uuid.UUID
	PlotID     *uuid.UUID
	CustomerID *uuid.UUID
	OfficerID  *uuid.UUID
	Stage      *domain.Stage
	Approval   *domain.ApprovalState
	IsActive   *bool
}

// StatusRequestFilter narrows ListStatusRequests.
type StatusRequestFilter struct {
	LeadID      *uuid.UUID
	RequestedBy *uuid.UUID
	ActionedBy  *uuid.UUID
	Stage       *domain.Stage
	Approval    *domain.ApprovalState
}

// PaymentFilter narrows ListPayments. PaidFrom/PaidTo bound paid_at inclusively.
type PaymentFilter struct {
	LeadID   *uuid.UUID
	Method   *domain.PaymentMethod
	Status   *domain.PaymentStatus
	Purpose  *domain.PaymentPurpose
	PaidFrom *time.Time
	PaidTo   *time.Time
}

// SiteVisitFilter narrows ListSiteVisits. PickupDate matches the calendar day.
type SiteVisitFilter struct {
	LeadID     *uuid.UUID
	IsPickup   *bool
	IsDrop     *bool
	PickupDate *time.Time
}

// LeadStore persists leads.
type LeadStore interface {
	CreateLead(ctx context.Context, lead domain.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	// GetLeadForUpdate locks the lead row until the transaction ends.
	GetLeadForUpdate(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	// UpdateLead writes every field except stage and approval.
	UpdateLead(ctx context.Context, lead domain.Lead) error
	SetLeadWorkflow(ctx context.Context, id uuid.UUID, stage domain.Stage, approval domain.ApprovalState) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
	// DeactivateStaleLeads flips is_active on active leads not updated since before,
	// skipping rows locked by other transactions.
	DeactivateStaleLeads(ctx context.Context, before time.Time) (int64, error)
}

// StatusRequestStore persists status change requests.
type StatusRequestStore interface {
	CreateStatusRequest(ctx context.Context, req domain.StatusChangeRequest) error
	GetStatusRequest(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error)
	GetStatusRequestForUpdate(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error)
	// UpdateStatusDecision writes approval, actioner, remarks and decision timestamps.
	UpdateStatusDecision(ctx context.Context, req domain.StatusChangeRequest) error
	ListStatusRequests(ctx context.Context, filter StatusRequestFilter) ([]domain.StatusChangeRequest, error)
	// LatestStatusRequest returns the most recently requested row for lead and stage.
	LatestStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error)
	// LiveStatusRequest returns a Pending or UnderReview row for lead and stage.
	LiveStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error)
}

// PaymentStore persists payments. There is no general update: only the status
// setters used by the approval cascade.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]domain.Payment, error)
	CountPayments(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (int, error)
	EarliestPayment(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (domain.Payment, bool, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
	SetPaymentStatusByPurpose(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose, status domain.PaymentStatus) (int64, error)
}

// SiteVisitStore persists site visits.
type SiteVisitStore interface {
	CreateSiteVisit(ctx context.Context, visit domain.SiteVisit) error
	GetSiteVisit(ctx context.Context, id uuid.UUID) (domain.SiteVisit, error)
	UpdateSiteVisit(ctx context.Context, visit domain.SiteVisit) error
	ListSiteVisits(ctx context.Context, filter SiteVisitFilter) ([]domain.SiteVisit, error)
}

// StatusLogStore persists the stage audit trail.
type StatusLogStore interface {
	AppendStatusLog(ctx context.Context, entry domain.StatusLog) error
	ListStatusLogs(ctx context.Context, leadID uuid.UUID) ([]domain.StatusLog, error)
}

// PerformanceReader computes officer aggregates.
type PerformanceReader interface {
	OfficerPerformance(ctx context.Context, officerID uuid.UUID) (domain.OfficerPerformance, error)
}

// Store is everything the CRM services and the workflow coordinator read and write.
type Store interface {
	LeadStore
	StatusRequestStore
	PaymentStore
	SiteVisitStore
	StatusLogStore
	PerformanceReader
	ports.PlotCatalog
	ports.IdentityDirectory
}

// Repository is a Store that can open a transaction. Writes made through the
// Store passed to fn commit together or not at all.
type Repository interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
