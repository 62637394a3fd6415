package handler

import (
	"net/http"
	"time"

	"estate_crm_backend/internal/crm/service"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler handles HTTP requests for the CRM workflow.
type Handler struct {
	leads    *service.LeadService
	payments *service.PaymentService
	visits   *service.SiteVisitService
	requests *service.StatusRequestService
	val      *validator.Validator
	window   time.Duration
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead ID"
	msgInvalidPaymentID = "invalid payment ID"
	msgInvalidVisitID   = "invalid site visit ID"
	msgInvalidRequestID = "invalid status request ID"
	msgInvalidOfficerID = "invalid officer ID"
)

// New creates a CRM handler. window is the inactivity window used by the
// manual deactivation sweep.
func New(
	leads *service.LeadService,
	payments *service.PaymentService,
	visits *service.SiteVisitService,
	requests *service.StatusRequestService,
	val *validator.Validator,
	window time.Duration,
) *Handler {
	return &Handler{leads: leads, payments: payments, visits: visits, requests: requests, val: val, window: window}
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.ValidationError(c, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.ValidationError(c, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.ValidationError(c, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.ValidationError(c, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return uuid.UUID{}, false
	}
	return id, true
}

// =============================================================================
// Leads
// =============================================================================

// CreateLead creates a lead.
// POST /api/v1/crm/leads
func (h *Handler) CreateLead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.leads.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListLeads lists leads.
// GET /api/v1/crm/leads
func (h *Handler) ListLeads(c *gin.Context) {
	var req transport.ListLeadsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.leads.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetLead returns one lead.
// GET /api/v1/crm/leads/:id
func (h *Handler) GetLead(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}

	result, err := h.leads.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateLead applies a partial update, optionally with a manual stage edit.
// PATCH /api/v1/crm/leads/:id
func (h *Handler) UpdateLead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}
	var req transport.UpdateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.leads.Edit(c.Request.Context(), identity.UserID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeactivateLead marks a lead inactive.
// POST /api/v1/crm/leads/:id/deactivate
func (h *Handler) DeactivateLead(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}

	result, err := h.leads.Deactivate(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// LeadOverview returns a lead with its requests, payments, visits and logs.
// GET /api/v1/crm/leads/:id/overview
func (h *Handler) LeadOverview(c *gin.Context) {
	id, ok := parseID(c, msgInvalidLeadID)
	if !ok {
		return
	}

	result, err := h.leads.Overview(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeactivateStaleLeads runs the inactivity sweep now (admin only).
// POST /api/v1/admin/crm/leads/deactivate-stale
func (h *Handler) DeactivateStaleLeads(c *gin.Context) {
	before := time.Now().UTC().Add(-h.window)
	n, err := h.leads.DeactivateStale(c.Request.Context(), before)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DeactivationResponse{Deactivated: n, Before: before})
}

// OfficerPerformance aggregates one officer's pipeline.
// GET /api/v1/crm/officers/:id/performance
func (h *Handler) OfficerPerformance(c *gin.Context) {
	id, ok := parseID(c, msgInvalidOfficerID)
	if !ok {
		return
	}

	result, err := h.leads.Performance(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// =============================================================================
// Payments
// =============================================================================

// CreatePayment records a payment.
// POST /api/v1/crm/payments
func (h *Handler) CreatePayment(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.payments.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListPayments lists payments.
// GET /api/v1/crm/payments
func (h *Handler) ListPayments(c *gin.Context) {
	var req transport.ListPaymentsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.payments.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetPayment returns one payment.
// GET /api/v1/crm/payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := parseID(c, msgInvalidPaymentID)
	if !ok {
		return
	}

	result, err := h.payments.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// =============================================================================
// Site visits
// =============================================================================

// CreateSiteVisit logs a visit.
// POST /api/v1/crm/site-visits
func (h *Handler) CreateSiteVisit(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateSiteVisitRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.visits.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// ListSiteVisits lists visits.
// GET /api/v1/crm/site-visits
func (h *Handler) ListSiteVisits(c *gin.Context) {
	var req transport.ListSiteVisitsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.visits.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetSiteVisit returns one visit.
// GET /api/v1/crm/site-visits/:id
func (h *Handler) GetSiteVisit(c *gin.Context) {
	id, ok := parseID(c, msgInvalidVisitID)
	if !ok {
		return
	}

	result, err := h.visits.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateSiteVisit edits visit logistics.
// PATCH /api/v1/crm/site-visits/:id
func (h *Handler) UpdateSiteVisit(c *gin.Context) {
	id, ok := parseID(c, msgInvalidVisitID)
	if !ok {
		return
	}
	var req transport.UpdateSiteVisitRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.visits.Update(c.Request.Context(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// =============================================================================
// Status change requests
// =============================================================================

// ListStatusRequests lists status change requests.
// GET /api/v1/crm/status-requests
func (h *Handler) ListStatusRequests(c *gin.Context) {
	var req transport.ListStatusRequestsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.requests.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetStatusRequest returns one status change request.
// GET /api/v1/crm/status-requests/:id
func (h *Handler) GetStatusRequest(c *gin.Context) {
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}

	result, err := h.requests.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateStatusRequest opens a status change request for a lead.
// POST /api/v1/crm/status-requests
func (h *Handler) CreateStatusRequest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	var req transport.CreateStatusRequestRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, opened, err := h.requests.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	if !opened {
		httpkit.OK(c, result)
		return
	}
	httpkit.Created(c, result)
}

// DecideStatusRequest records an approver's decision.
// POST /api/v1/crm/status-requests/:id/decision
func (h *Handler) DecideStatusRequest(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c, msgInvalidRequestID)
	if !ok {
		return
	}
	var req transport.DecideStatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.requests.Decide(c.Request.Context(), identity.UserID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
