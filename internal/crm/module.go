// Package crm provides the real-estate CRM bounded context: leads, payments,
// site visits and the status change workflow that ties them together.
package crm

import (
	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/handler"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/service"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/phone"
	"estate_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Roles allowed to decide status change requests.
var deciderRoles = []string{"approver", "admin"}

// Module is the CRM bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	leads   *service.LeadService
}

// NewModule creates and initializes the CRM module backed by PostgreSQL.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, cfg config.CRMConfig, log *logger.Logger) (*Module, error) {
	return NewModuleWithRepository(repository.New(pool), bus, val, cfg, log)
}

// NewModuleWithRepository wires the module on any repository implementation.
func NewModuleWithRepository(repo repository.Repository, bus events.Bus, val *validator.Validator, cfg config.CRMConfig, log *logger.Logger) (*Module, error) {
	if err := transport.RegisterValidators(val); err != nil {
		return nil, err
	}

	deps := service.Deps{Repo: repo, Flow: workflow.New(log), Bus: bus, Log: log}
	leads := service.NewLeadService(deps)
	h := handler.New(
		leads,
		service.NewPaymentService(deps, domain.NewReferenceGenerator()),
		service.NewSiteVisitService(deps, phone.NewNormalizer(cfg.GetPhoneDefaultRegion())),
		service.NewStatusRequestService(deps),
		val,
		cfg.GetLeadInactivityWindow(),
	)

	return &Module{handler: h, leads: leads}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "crm"
}

// Leads returns the lead service for the scheduler.
func (m *Module) Leads() *service.LeadService {
	return m.leads
}

// RegisterRoutes mounts CRM routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Protected.Group("/crm")

	g.POST("/leads", m.handler.CreateLead)
	g.GET("/leads", m.handler.ListLeads)
	g.GET("/leads/:id", m.handler.GetLead)
	g.PATCH("/leads/:id", m.handler.UpdateLead)
	g.POST("/leads/:id/deactivate", m.handler.DeactivateLead)
	g.GET("/leads/:id/overview", m.handler.LeadOverview)

	g.POST("/payments", m.handler.CreatePayment)
	g.GET("/payments", m.handler.ListPayments)
	g.GET("/payments/:id", m.handler.GetPayment)

	g.POST("/site-visits", m.handler.CreateSiteVisit)
	g.GET("/site-visits", m.handler.ListSiteVisits)
	g.GET("/site-visits/:id", m.handler.GetSiteVisit)
	g.PATCH("/site-visits/:id", m.handler.UpdateSiteVisit)

	g.POST("/status-requests", m.handler.CreateStatusRequest)
	g.GET("/status-requests", m.handler.ListStatusRequests)
	g.GET("/status-requests/:id", m.handler.GetStatusRequest)
	g.POST("/status-requests/:id/decision", httpkit.RequireAnyRole(deciderRoles...), m.handler.DecideStatusRequest)

	g.GET("/officers/:id/performance", m.handler.OfficerPerformance)

	ctx.Admin.POST("/crm/leads/deactivate-stale", m.handler.DeactivateStaleLeads)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
