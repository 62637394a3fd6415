package domain

import (
	"time"

	"github.com/google/uuid"
)

// Lead is one customer's interest in one property or plot.
// CurrentStage and CurrentApproval are only written by the workflow coordinator.
type Lead struct {
	ID                 uuid.UUID
	PropertyID         uuid.UUID
	PhaseID            *uuid.UUID
	PlotID             *uuid.UUID
	CustomerID         uuid.UUID
	AssignedOfficerID  *uuid.UUID
	InitialContactDate *time.Time
	TotalAmountCents   int64
	CurrentStage       *Stage
	CurrentApproval    *ApprovalState
	Details            map[string]any
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// StatusChangeRequest records one attempted stage transition and its resolution.
type StatusChangeRequest struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	RequestedBy    *uuid.UUID
	ActionedBy     *uuid.UUID
	RequestedStage Stage
	Approval       ApprovalState
	Remarks        string
	RequestedAt    time.Time
	ApprovedAt     *time.Time
	RejectedAt     *time.Time
	UpdatedAt      time.Time
}

// Payment is an append-only record of money collected for a lead.
type Payment struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	AmountCents      int64
	Method           PaymentMethod
	Status           PaymentStatus
	Purpose          PaymentPurpose
	Description      string
	ReferenceNumber  string
	BackendReference string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SiteVisit is a pickup/drop logistics event for a lead.
type SiteVisit struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	IsPickup      bool
	PickupAddress string
	PickupDate    *time.Time
	IsDrop        bool
	DropAddress   string
	ContactPhone  string
	Feedback      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusLog is an audit entry for a change of a lead's stage.
type StatusLog struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	PreviousStage *Stage
	NewStage      Stage
	ChangedBy     *uuid.UUID
	Remarks       string
	ChangedAt     time.Time
}

// OfficerPerformance aggregates one sales officer's pipeline.
type OfficerPerformance struct {
	OfficerID              uuid.UUID
	LeadsByStage           map[Stage]int
	LeadsWithoutStage      int
	ApprovedRequests       int
	RejectedRequests       int
	PendingRequests        int
	CompletedPaymentsCents int64
}
