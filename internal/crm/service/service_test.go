package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/ports"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/repository/memstore"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) Handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, e.EventName())
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type harness struct {
	ctx      context.Context
	store    *memstore.Store
	bus      *events.InMemoryBus
	events   *recorder
	leads    *LeadService
	payments *PaymentService
	visits   *SiteVisitService
	requests *StatusRequestService
	officer  uuid.UUID
	approver uuid.UUID
	customer uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Discard()
	store := memstore.New()
	bus := events.NewInMemoryBus(log)
	rec := &recorder{}
	for _, name := range []string{
		events.StatusChangeRequested{}.EventName(),
		events.StatusChangeDecided{}.EventName(),
		events.PaymentRecorded{}.EventName(),
		events.SiteVisitLogged{}.EventName(),
	} {
		bus.Subscribe(name, rec)
	}

	deps := Deps{Repo: store, Flow: workflow.New(log), Bus: bus, Log: log}
	h := &harness{
		ctx:      context.Background(),
		store:    store,
		bus:      bus,
		events:   rec,
		leads:    NewLeadService(deps),
		payments: NewPaymentService(deps, domain.NewReferenceGenerator()),
		visits:   NewSiteVisitService(deps, phone.NewNormalizer("IN")),
		requests: NewStatusRequestService(deps),
		officer:  uuid.New(),
		approver: uuid.New(),
		customer: uuid.New(),
	}
	store.AddUser(h.officer)
	store.AddUser(h.approver)
	store.AddCustomer(h.customer)
	return h
}

func (h *harness) newLead(t *testing.T) transport.LeadResponse {
	t.Helper()
	lead, err := h.leads.Create(h.ctx, h.officer, transport.CreateLeadRequest{
		PropertyID: uuid.New(),
		CustomerID: h.customer,
	})
	require.NoError(t, err)
	return lead
}

func (h *harness) pay(t *testing.T, leadID uuid.UUID, purpose string, cents int64) transport.PaymentResponse {
	t.Helper()
	p, err := h.payments.Create(h.ctx, h.officer, transport.CreatePaymentRequest{
		LeadID:      leadID,
		AmountCents: &cents,
		Method:      "upi",
		Purpose:     purpose,
	})
	require.NoError(t, err)
	return p
}

func (h *harness) publishedEvents() []string {
	h.bus.Wait()
	return h.events.seen()
}

func str(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected apperr, got %v", err)
	details, _ := appErr.Details.(map[string]string)
	return details
}

func TestCreateLeadPricesAndReservesPlot(t *testing.T) {
	h := newHarness(t)
	plotID := uuid.New()
	h.store.AddPlot(ports.Plot{ID: plotID, PriceCents: int64p(125050), AreaHundredths: int64p(12025)})

	lead, err := h.leads.Create(h.ctx, h.officer, transport.CreateLeadRequest{
		PropertyID:         uuid.New(),
		PlotID:             &plotID,
		CustomerID:         h.customer,
		InitialContactDate: str("2026-03-14"),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15037263), lead.TotalAmountCents)
	assert.Nil(t, lead.CurrentStage)
	assert.Nil(t, lead.CurrentApproval)
	assert.True(t, lead.IsActive)
	assert.Equal(t, &h.officer, lead.AssignedOfficerID)
	assert.Equal(t, "2026-03-14", *lead.InitialContactDate)

	plot, err := h.store.GetPlot(h.ctx, plotID)
	require.NoError(t, err)
	assert.True(t, plot.IsSold)
}

func TestCreateLeadReferenceChecks(t *testing.T) {
	h := newHarness(t)
	unknown := uuid.New()

	tests := []struct {
		name  string
		req   transport.CreateLeadRequest
		field string
	}{
		{"customer", transport.CreateLeadRequest{PropertyID: uuid.New(), CustomerID: uuid.New()}, "customerId"},
		{"officer", transport.CreateLeadRequest{PropertyID: uuid.New(), CustomerID: h.customer, AssignedOfficerID: &unknown}, "assignedOfficerId"},
		{"plot", transport.CreateLeadRequest{PropertyID: uuid.New(), CustomerID: h.customer, PlotID: &unknown}, "plotId"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.leads.Create(h.ctx, h.officer, tc.req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, "does not exist", detailsOf(t, err)[tc.field])
		})
	}

	list, err := h.leads.List(h.ctx, transport.ListLeadsRequest{})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestEditLeadManualStageEditOpensRequest(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	updated, err := h.leads.Edit(h.ctx, h.officer, lead.ID, transport.UpdateLeadRequest{
		Details:         map[string]any{"facing": "east"},
		CurrentStage:    str("documentation"),
		CurrentApproval: str("pending"),
		Remarks:         "sale deed drafted",
	})
	require.NoError(t, err)

	assert.Equal(t, "documentation", *updated.CurrentStage)
	assert.Equal(t, "pending", *updated.CurrentApproval)
	assert.Equal(t, "east", updated.Details["facing"])

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	require.Equal(t, 1, reqs.Total)
	assert.Equal(t, "documentation", reqs.Items[0].RequestedStage)
	assert.Equal(t, "sale deed drafted", reqs.Items[0].Remarks)
	assert.Equal(t, &h.officer, reqs.Items[0].RequestedBy)

	overview, err := h.leads.Overview(h.ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, overview.StatusLogs, 1)
	assert.Nil(t, overview.StatusLogs[0].PreviousStage)
	assert.Equal(t, "documentation", overview.StatusLogs[0].NewStage)

	assert.Contains(t, h.publishedEvents(), events.StatusChangeRequested{}.EventName())
}

func TestEditLeadRejectsApprovalEdits(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	tests := []struct {
		name string
		req  transport.UpdateLeadRequest
	}{
		{"approval only", transport.UpdateLeadRequest{CurrentApproval: str("approved")}},
		{"approved stage edit", transport.UpdateLeadRequest{CurrentStage: str("payment"), CurrentApproval: str("approved")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.leads.Edit(h.ctx, h.officer, lead.ID, tc.req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, detailsOf(t, err), "currentApproval")
		})
	}

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentStage)
}

func TestEditLeadRollsBackEveryStep(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	plotID := uuid.New()
	h.store.AddPlot(ports.Plot{ID: plotID, PriceCents: int64p(100), AreaHundredths: int64p(100)})

	h.store.FailOn("CreateStatusRequest", errors.New("connection reset"))
	_, err := h.leads.Edit(h.ctx, h.officer, lead.ID, transport.UpdateLeadRequest{
		PlotID:       &plotID,
		Details:      map[string]any{"note": "x"},
		CurrentStage: str("documentation"),
	})
	require.Error(t, err)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PlotID)
	assert.Nil(t, got.CurrentStage)
	assert.Empty(t, got.Details)

	plot, err := h.store.GetPlot(h.ctx, plotID)
	require.NoError(t, err)
	assert.False(t, plot.IsSold)
	assert.Empty(t, h.publishedEvents())
}

func TestEditLeadRejectsPlotSoldElsewhere(t *testing.T) {
	h := newHarness(t)
	plotID := uuid.New()
	h.store.AddPlot(ports.Plot{ID: plotID, IsSold: true})
	lead := h.newLead(t)

	_, err := h.leads.Edit(h.ctx, h.officer, lead.ID, transport.UpdateLeadRequest{PlotID: &plotID})
	require.Error(t, err)
	assert.Equal(t, "already sold", detailsOf(t, err)["plotId"])
}

func TestEditLeadClearsOfficer(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	require.NotNil(t, lead.AssignedOfficerID)

	updated, err := h.leads.Edit(h.ctx, h.officer, lead.ID, transport.UpdateLeadRequest{
		AssignedOfficerID: transport.OptionalUUID{Set: true},
	})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedOfficerID)
}

func TestEditUnknownLead(t *testing.T) {
	h := newHarness(t)
	_, err := h.leads.Edit(h.ctx, h.officer, uuid.New(), transport.UpdateLeadRequest{IsActive: new(bool)})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeactivateLead(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	got, err := h.leads.Deactivate(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	again, err := h.leads.Deactivate(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, again.IsActive)

	inactive := false
	list, err := h.leads.List(h.ctx, transport.ListLeadsRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestSiteVisitScenario(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	visit, err := h.visits.Create(h.ctx, h.officer, transport.CreateSiteVisitRequest{
		LeadID:        lead.ID,
		IsPickup:      true,
		PickupAddress: "  12 <b>MG</b> Road ",
		ContactPhone:  "098765 43210",
	})
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", visit.ContactPhone)
	assert.Equal(t, "12 MG Road", visit.PickupAddress)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "site_visit", *got.CurrentStage)
	assert.Equal(t, "pending", *got.CurrentApproval)

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String(), Stage: "site_visit"})
	require.NoError(t, err)
	require.Equal(t, 1, reqs.Total)
	assert.Equal(t, "pending", reqs.Items[0].Approval)

	assert.ElementsMatch(t, []string{
		events.SiteVisitLogged{}.EventName(),
		events.StatusChangeRequested{}.EventName(),
	}, h.publishedEvents())
}

func TestSiteVisitRejectsInvalidPhone(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	_, err := h.visits.Create(h.ctx, h.officer, transport.CreateSiteVisitRequest{LeadID: lead.ID, ContactPhone: "12"})
	require.Error(t, err)
	assert.Equal(t, "invalid phone number", detailsOf(t, err)["contactPhone"])
}

func TestUpdateSiteVisitHasNoWorkflowEffect(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	visit, err := h.visits.Create(h.ctx, h.officer, transport.CreateSiteVisitRequest{LeadID: lead.ID, IsDrop: true})
	require.NoError(t, err)

	updated, err := h.visits.Update(h.ctx, visit.ID, transport.UpdateSiteVisitRequest{
		DropAddress: str("Gate 4"),
		Feedback:    str("liked the corner plot"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gate 4", updated.DropAddress)
	assert.True(t, updated.IsDrop)

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, reqs.Total)

	isDrop := true
	list, err := h.visits.List(h.ctx, transport.ListSiteVisitsRequest{LeadID: lead.ID.String(), IsDrop: &isDrop})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestTokenPaymentApprovalScenario(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	payment := h.pay(t, lead.ID, "token", 500000)
	assert.True(t, strings.HasPrefix(payment.BackendReference, "PAY"))
	assert.Len(t, payment.BackendReference, 23)
	assert.Equal(t, "pending", payment.Status)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "token_advance", *got.CurrentStage)
	assert.Equal(t, "pending", *got.CurrentApproval)

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	require.Equal(t, 1, reqs.Total)

	decision, err := h.requests.Decide(h.ctx, h.approver, reqs.Items[0].ID, transport.DecideStatusRequest{Outcome: "approved"})
	require.NoError(t, err)
	assert.Equal(t, "approved", decision.Request.Approval)
	assert.NotNil(t, decision.Request.ApprovedAt)
	assert.Equal(t, &h.approver, decision.Request.ActionedBy)
	assert.Equal(t, "approved", *decision.Lead.CurrentApproval)
	assert.Equal(t, int64(1), decision.PaymentsUpdated)

	settled, err := h.payments.Get(h.ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", settled.Status)

	_, err = h.requests.Decide(h.ctx, h.approver, reqs.Items[0].ID, transport.DecideStatusRequest{Outcome: "approved"})
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidTransition))

	again, err := h.requests.Get(h.ctx, reqs.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, *decision.Request.ApprovedAt, *again.ApprovedAt)

	perf, err := h.leads.Performance(h.ctx, h.officer)
	require.NoError(t, err)
	assert.Equal(t, 1, perf.LeadsByStage["token_advance"])
	assert.Equal(t, 0, perf.LeadsByStage["payment"])
	assert.Equal(t, 1, perf.ApprovedRequests)
	assert.Equal(t, int64(500000), perf.CompletedPaymentsCents)
}

func TestRejectBalancePaymentsScenario(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	token := h.pay(t, lead.ID, "token", 100000)
	b1 := h.pay(t, lead.ID, "balance", 200000)
	b2 := h.pay(t, lead.ID, "balance", 300000)

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String(), Stage: "payment"})
	require.NoError(t, err)
	require.Equal(t, 1, reqs.Total, "second balance payment must not open another request")

	decision, err := h.requests.Decide(h.ctx, h.approver, reqs.Items[0].ID, transport.DecideStatusRequest{Outcome: "rejected", Remarks: "cheque bounced"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), decision.PaymentsUpdated)
	assert.NotNil(t, decision.Request.RejectedAt)

	failed := "failed"
	list, err := h.payments.List(h.ctx, transport.ListPaymentsRequest{LeadID: lead.ID.String(), Status: failed})
	require.NoError(t, err)
	ids := mapAll(list.Items, func(p transport.PaymentResponse) uuid.UUID { return p.ID })
	assert.ElementsMatch(t, []uuid.UUID{b1.ID, b2.ID}, ids)

	tokenNow, err := h.payments.Get(h.ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", tokenNow.Status)
}

func TestCreateStatusRequestMovesLead(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	created, opened, err := h.requests.Create(h.ctx, h.officer, transport.CreateStatusRequestRequest{
		LeadID:         lead.ID,
		RequestedStage: "documentation",
		Remarks:        " papers ready ",
	})
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, "documentation", created.RequestedStage)
	assert.Equal(t, "pending", created.Approval)
	assert.Equal(t, "papers ready", created.Remarks)
	assert.Equal(t, &h.officer, created.RequestedBy)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "documentation", *got.CurrentStage)
	assert.Equal(t, "pending", *got.CurrentApproval)

	again, opened, err := h.requests.Create(h.ctx, h.officer, transport.CreateStatusRequestRequest{
		LeadID:         lead.ID,
		RequestedStage: "documentation",
	})
	require.NoError(t, err)
	assert.False(t, opened)
	assert.Equal(t, created.ID, again.ID)

	assert.Equal(t, []string{events.StatusChangeRequested{}.EventName()}, h.publishedEvents())
}

func TestCreateStatusRequestValidation(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	_, _, err := h.requests.Create(h.ctx, h.officer, transport.CreateStatusRequestRequest{LeadID: uuid.New(), RequestedStage: "payment"})
	require.True(t, apperr.Is(err, apperr.KindValidation))
	appErr, _ := apperr.As(err)
	assert.Equal(t, map[string]string{"leadId": "does not exist"}, appErr.Details)

	_, _, err = h.requests.Create(h.ctx, h.officer, transport.CreateStatusRequestRequest{LeadID: lead.ID, RequestedStage: "closing"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	assert.Zero(t, reqs.Total)
}

func TestTokenPaymentAfterDocumentationReopensTokenAdvance(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	_, _, err := h.requests.Create(h.ctx, h.officer, transport.CreateStatusRequestRequest{LeadID: lead.ID, RequestedStage: "documentation"})
	require.NoError(t, err)

	h.pay(t, lead.ID, "token", 500000)

	reqs, err := h.requests.List(h.ctx, transport.ListStatusRequestsRequest{LeadID: lead.ID.String(), Stage: "token_advance"})
	require.NoError(t, err)
	require.Equal(t, 1, reqs.Total)
	assert.Equal(t, "pending", reqs.Items[0].Approval)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "token_advance", *got.CurrentStage)
	assert.Equal(t, "pending", *got.CurrentApproval)
}

func TestCreatePaymentValidation(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	_, err := h.payments.Create(h.ctx, h.officer, transport.CreatePaymentRequest{
		LeadID: lead.ID, AmountCents: int64p(-1), Method: "cash", Purpose: "token",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = h.payments.Create(h.ctx, h.officer, transport.CreatePaymentRequest{
		LeadID: uuid.New(), AmountCents: int64p(10), Method: "cash", Purpose: "token",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCreatePaymentGivesUpAfterReferenceCollisions(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	h.store.FailOn("CreatePayment", repository.ErrReferenceTaken)

	_, err := h.payments.Create(h.ctx, h.officer, transport.CreatePaymentRequest{
		LeadID: lead.ID, AmountCents: int64p(10), Method: "cash", Purpose: "token",
	})
	assert.True(t, apperr.Is(err, apperr.KindIntegrity))

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentStage)
}

func TestListPaymentsRejectsInvertedRange(t *testing.T) {
	h := newHarness(t)
	from := mustTime(t, "2026-05-02T00:00:00Z")
	to := mustTime(t, "2026-05-01T00:00:00Z")

	_, err := h.payments.List(h.ctx, transport.ListPaymentsRequest{StartTime: &from, EndTime: &to})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOverviewCollectsEverything(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)
	_, err := h.visits.Create(h.ctx, h.officer, transport.CreateSiteVisitRequest{LeadID: lead.ID, IsPickup: true})
	require.NoError(t, err)
	h.pay(t, lead.ID, "token", 1000)

	overview, err := h.leads.Overview(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "token_advance", *overview.Lead.CurrentStage)
	assert.Len(t, overview.StatusRequests, 2)
	assert.Len(t, overview.Payments, 1)
	assert.Len(t, overview.SiteVisits, 1)
	assert.Len(t, overview.StatusLogs, 2)

	_, err = h.leads.Overview(h.ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPerformanceUnknownOfficer(t *testing.T) {
	h := newHarness(t)
	_, err := h.leads.Performance(h.ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func mustTime(t *testing.T, raw string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, raw)
	require.NoError(t, err)
	return v
}

func TestDeactivateStaleSkipsRecentLeads(t *testing.T) {
	h := newHarness(t)
	lead := h.newLead(t)

	n, err := h.leads.DeactivateStale(h.ctx, lead.UpdatedAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.leads.DeactivateStale(h.ctx, lead.UpdatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := h.leads.Get(h.ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Nil(t, got.CurrentStage)
}
