// Package events lists the CRM's domain events. The bus itself lives in
// platform/events; the aliases below let services and cmd wiring import one
// package.
package events

import (
	"estate_crm_backend/platform/events"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus returns the process-local bus used by the API and scheduler.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// CRM Workflow Events
// =============================================================================

// StatusChangeRequested is published when the workflow opens a new status
// change request for a lead.
type StatusChangeRequested struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	RequestID   uuid.UUID  `json:"requestId"`
	Stage       string     `json:"stage"`
	RequestedBy *uuid.UUID `json:"requestedBy,omitempty"`
}

func (e StatusChangeRequested) EventName() string { return "crm.status_request.opened" }

// StatusChangeDecided is published after an approver decides a request.
type StatusChangeDecided struct {
	BaseEvent
	LeadID          uuid.UUID  `json:"leadId"`
	RequestID       uuid.UUID  `json:"requestId"`
	Stage           string     `json:"stage"`
	Approval        string     `json:"approval"`
	ActionedBy      *uuid.UUID `json:"actionedBy,omitempty"`
	PaymentsUpdated int64      `json:"paymentsUpdated"`
}

func (e StatusChangeDecided) EventName() string { return "crm.status_request.decided" }

// PaymentRecorded is published when a payment row is committed.
type PaymentRecorded struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	PaymentID        uuid.UUID `json:"paymentId"`
	Purpose          string    `json:"purpose"`
	AmountCents      int64     `json:"amountCents"`
	BackendReference string    `json:"backendReference"`
}

func (e PaymentRecorded) EventName() string { return "crm.payment.recorded" }

// SiteVisitLogged is published when a site visit row is committed.
type SiteVisitLogged struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	SiteVisitID uuid.UUID `json:"siteVisitId"`
}

func (e SiteVisitLogged) EventName() string { return "crm.site_visit.logged" }

// LeadsDeactivated is published by the inactivity sweep.
type LeadsDeactivated struct {
	BaseEvent
	Count int64 `json:"count"`
}

func (e LeadsDeactivated) EventName() string { return "crm.leads.deactivated" }
