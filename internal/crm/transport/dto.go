package transport

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Request DTOs

type CreateLeadRequest struct {
	PropertyID         uuid.UUID      `json:"propertyId" validate:"required"`
	PhaseID            *uuid.UUID     `json:"phaseId,omitempty"`
	PlotID             *uuid.UUID     `json:"plotId,omitempty"`
	CustomerID         uuid.UUID      `json:"customerId" validate:"required"`
	AssignedOfficerID  *uuid.UUID     `json:"assignedOfficerId,omitempty"`
	InitialContactDate *string        `json:"initialContactDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Details            map[string]any `json:"details,omitempty"`
}

// UpdateLeadRequest is a partial update. Absent fields are left unchanged;
// phaseId and assignedOfficerId may be cleared with null.
type UpdateLeadRequest struct {
	PropertyID         *uuid.UUID     `json:"propertyId,omitempty"`
	PhaseID            OptionalUUID   `json:"phaseId,omitempty" validate:"-"`
	PlotID             *uuid.UUID     `json:"plotId,omitempty"`
	CustomerID         *uuid.UUID     `json:"customerId,omitempty"`
	AssignedOfficerID  OptionalUUID   `json:"assignedOfficerId,omitempty" validate:"-"`
	InitialContactDate *string        `json:"initialContactDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Details            map[string]any `json:"details,omitempty"`
	IsActive           *bool          `json:"isActive,omitempty"`
	CurrentStage       *string        `json:"currentStage,omitempty" validate:"omitempty,stage"`
	CurrentApproval    *string        `json:"currentApproval,omitempty" validate:"omitempty,approval"`
	Remarks            string         `json:"remarks,omitempty" validate:"max=2000"`
}

type ListLeadsRequest struct {
	PropertyID string `form:"propertyId" validate:"omitempty,uuid"`
	PhaseID    string `form:"phaseId" validate:"omitempty,uuid"`
	PlotID     string `form:"plotId" validate:"omitempty,uuid"`
	CustomerID string `form:"customerId" validate:"omitempty,uuid"`
	OfficerID  string `form:"assignedOfficerId" validate:"omitempty,uuid"`
	Stage      string `form:"currentStage" validate:"omitempty,stage"`
	Approval   string `form:"currentApproval" validate:"omitempty,approval"`
	IsActive   *bool  `form:"isActive"`
}

type CreatePaymentRequest struct {
	LeadID          uuid.UUID  `json:"leadId" validate:"required"`
	AmountCents     *int64     `json:"amountCents" validate:"required,gte=0"`
	Method          string     `json:"method" validate:"required,paymentMethod"`
	Purpose         string     `json:"purpose" validate:"required,paymentPurpose"`
	Description     string     `json:"description,omitempty" validate:"max=1000"`
	ReferenceNumber string     `json:"referenceNumber,omitempty" validate:"max=100"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

type ListPaymentsRequest struct {
	LeadID    string     `form:"leadId" validate:"omitempty,uuid"`
	Method    string     `form:"method" validate:"omitempty,paymentMethod"`
	Status    string     `form:"status" validate:"omitempty,paymentStatus"`
	Purpose   string     `form:"purpose" validate:"omitempty,paymentPurpose"`
	StartTime *time.Time `form:"startTime" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime   *time.Time `form:"endTime" time_format:"2006-01-02T15:04:05Z07:00"`
}

type CreateSiteVisitRequest struct {
	LeadID        uuid.UUID  `json:"leadId" validate:"required"`
	IsPickup      bool       `json:"isPickup"`
	PickupAddress string     `json:"pickupAddress,omitempty" validate:"max=500"`
	PickupDate    *time.Time `json:"pickupDate,omitempty"`
	IsDrop        bool       `json:"isDrop"`
	DropAddress   string     `json:"dropAddress,omitempty" validate:"max=500"`
	ContactPhone  string     `json:"contactPhone,omitempty" validate:"max=32"`
	Feedback      string     `json:"feedback,omitempty" validate:"max=2000"`
}

// UpdateSiteVisitRequest edits logistics only; the lead cannot be changed.
type UpdateSiteVisitRequest struct {
	IsPickup      *bool      `json:"isPickup,omitempty"`
	PickupAddress *string    `json:"pickupAddress,omitempty" validate:"omitempty,max=500"`
	PickupDate    *time.Time `json:"pickupDate,omitempty"`
	IsDrop        *bool      `json:"isDrop,omitempty"`
	DropAddress   *string    `json:"dropAddress,omitempty" validate:"omitempty,max=500"`
	ContactPhone  *string    `json:"contactPhone,omitempty" validate:"omitempty,max=32"`
	Feedback      *string    `json:"feedback,omitempty" validate:"omitempty,max=2000"`
}

type ListSiteVisitsRequest struct {
	LeadID     string `form:"leadId" validate:"omitempty,uuid"`
	IsPickup   *bool  `form:"isPickup"`
	IsDrop     *bool  `form:"isDrop"`
	PickupDate string `form:"pickupDate" validate:"omitempty,datetime=2006-01-02"`
}

type ListStatusRequestsRequest struct {
	LeadID      string `form:"leadId" validate:"omitempty,uuid"`
	RequestedBy string `form:"requestedBy" validate:"omitempty,uuid"`
	ActionedBy  string `form:"actionedBy" validate:"omitempty,uuid"`
	Stage       string `form:"requestedStage" validate:"omitempty,stage"`
	Approval    string `form:"approval" validate:"omitempty,approval"`
}

// CreateStatusRequestRequest asks the workflow to move a lead to a stage.
// The request starts Pending; its approval is set through the decision route.
type CreateStatusRequestRequest struct {
	LeadID         uuid.UUID `json:"leadId" validate:"required"`
	RequestedStage string    `json:"requestedStage" validate:"required,stage"`
	Remarks        string    `json:"remarks,omitempty" validate:"max=2000"`
}

type DecideStatusRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=under_review approved rejected completed"`
	Remarks string `json:"remarks,omitempty" validate:"max=2000"`
}

// Response DTOs

type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	PropertyID         uuid.UUID      `json:"propertyId"`
	PhaseID            *uuid.UUID     `json:"phaseId,omitempty"`
	PlotID             *uuid.UUID     `json:"plotId,omitempty"`
	CustomerID         uuid.UUID      `json:"customerId"`
	AssignedOfficerID  *uuid.UUID     `json:"assignedOfficerId,omitempty"`
	InitialContactDate *string        `json:"initialContactDate,omitempty"`
	TotalAmountCents   int64          `json:"totalAmountCents"`
	CurrentStage       *string        `json:"currentStage"`
	CurrentApproval    *string        `json:"currentApproval"`
	Details            map[string]any `json:"details"`
	IsActive           bool           `json:"isActive"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

type StatusRequestResponse struct {
	ID             uuid.UUID  `json:"id"`
	LeadID         uuid.UUID  `json:"leadId"`
	RequestedBy    *uuid.UUID `json:"requestedBy,omitempty"`
	ActionedBy     *uuid.UUID `json:"actionedBy,omitempty"`
	RequestedStage string     `json:"requestedStage"`
	Approval       string     `json:"approval"`
	Remarks        string     `json:"remarks"`
	RequestedAt    time.Time  `json:"requestedAt"`
	ApprovedAt     *time.Time `json:"approvedAt,omitempty"`
	RejectedAt     *time.Time `json:"rejectedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type StatusRequestListResponse struct {
	Items []StatusRequestResponse `json:"items"`
	Total int                     `json:"total"`
}

// DecisionResponse is the decided request plus the lead after propagation.
type DecisionResponse struct {
	Request         StatusRequestResponse `json:"request"`
	Lead            LeadResponse          `json:"lead"`
	PaymentsUpdated int64                 `json:"paymentsUpdated"`
}

type PaymentResponse struct {
	ID               uuid.UUID  `json:"id"`
	LeadID           uuid.UUID  `json:"leadId"`
	AmountCents      int64      `json:"amountCents"`
	Method           string     `json:"method"`
	Status           string     `json:"status"`
	Purpose          string     `json:"purpose"`
	Description      string     `json:"description"`
	ReferenceNumber  string     `json:"referenceNumber"`
	BackendReference string     `json:"backendReference"`
	PaidAt           *time.Time `json:"paidAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type PaymentListResponse struct {
	Items []PaymentResponse `json:"items"`
	Total int               `json:"total"`
}

type SiteVisitResponse struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"leadId"`
	IsPickup      bool       `json:"isPickup"`
	PickupAddress string     `json:"pickupAddress"`
	PickupDate    *time.Time `json:"pickupDate,omitempty"`
	IsDrop        bool       `json:"isDrop"`
	DropAddress   string     `json:"dropAddress"`
	ContactPhone  string     `json:"contactPhone"`
	Feedback      string     `json:"feedback"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type SiteVisitListResponse struct {
	Items []SiteVisitResponse `json:"items"`
	Total int                 `json:"total"`
}

type StatusLogResponse struct {
	ID            uuid.UUID  `json:"id"`
	PreviousStage *string    `json:"previousStage"`
	NewStage      string     `json:"newStage"`
	ChangedBy     *uuid.UUID `json:"changedBy,omitempty"`
	Remarks       string     `json:"remarks"`
	ChangedAt     time.Time  `json:"changedAt"`
}

// LeadOverviewResponse bundles a lead with everything recorded against it.
type LeadOverviewResponse struct {
	Lead           LeadResponse            `json:"lead"`
	StatusRequests []StatusRequestResponse `json:"statusRequests"`
	Payments       []PaymentResponse       `json:"payments"`
	SiteVisits     []SiteVisitResponse     `json:"siteVisits"`
	StatusLogs     []StatusLogResponse     `json:"statusLogs"`
}

type OfficerPerformanceResponse struct {
	OfficerID              uuid.UUID      `json:"officerId"`
	LeadsByStage           map[string]int `json:"leadsByStage"`
	LeadsWithoutStage      int            `json:"leadsWithoutStage"`
	ApprovedRequests       int            `json:"approvedRequests"`
	RejectedRequests       int            `json:"rejectedRequests"`
	PendingRequests        int            `json:"pendingRequests"`
	CompletedPaymentsCents int64          `json:"completedPaymentsCents"`
}

type DeactivationResponse struct {
	Deactivated int64     `json:"deactivated"`
	Before      time.Time `json:"before"`
}
