// Package memstore is an in-memory repository.Repository. Transactions take a
// snapshot and restore it when the callback fails, so tests can assert that a
// failed workflow leaves no partial writes behind.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/ports"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

type state struct {
	leads     map[uuid.UUID]domain.Lead
	requests  []domain.StatusChangeRequest
	payments  []domain.Payment
	visits    []domain.SiteVisit
	logs      []domain.StatusLog
	plots     map[uuid.UUID]ports.Plot
	users     map[uuid.UUID]struct{}
	customers map[uuid.UUID]struct{}
}

func (s *state) clone() *state {
	return &state{
		leads:     maps.Clone(s.leads),
		requests:  slices.Clone(s.requests),
		payments:  slices.Clone(s.payments),
		visits:    slices.Clone(s.visits),
		logs:      slices.Clone(s.logs),
		plots:     maps.Clone(s.plots),
		users:     maps.Clone(s.users),
		customers: maps.Clone(s.customers),
	}
}

// Store implements repository.Repository in memory.
type Store struct {
	mu     *sync.Mutex
	data   *state
	faults map[string]error
	inTx   bool
}

var _ repository.Repository = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		data: &state{
			leads:     make(map[uuid.UUID]domain.Lead),
			plots:     make(map[uuid.UUID]ports.Plot),
			users:     make(map[uuid.UUID]struct{}),
			customers: make(map[uuid.UUID]struct{}),
		},
		faults: make(map[string]error),
	}
}

// AddUser registers a user id for identity checks and foreign keys.
func (s *Store) AddUser(id uuid.UUID) {
	defer s.lock()()
	s.data.users[id] = struct{}{}
}

// AddCustomer registers a customer id.
func (s *Store) AddCustomer(id uuid.UUID) {
	defer s.lock()()
	s.data.customers[id] = struct{}{}
}

// AddPlot registers a catalog plot.
func (s *Store) AddPlot(p ports.Plot) {
	defer s.lock()()
	s.data.plots[p.ID] = p
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	defer s.lock()()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fault(method string) error {
	return s.faults[method]
}

// WithinTx serializes transactions and rolls back on error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, faults: s.faults, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

func notFound(op, msg string) error {
	return apperr.NotFound(msg).WithOp(op)
}

func missingReference(op, field string) error {
	return apperr.Validation("referenced record does not exist").
		WithOp(op).
		WithDetails(map[string]string{field: "does not exist"})
}

func (s *Store) checkLeadRefs(op string, l domain.Lead) error {
	if _, ok := s.data.customers[l.CustomerID]; !ok {
		return missingReference(op, "customer_id")
	}
	if l.AssignedOfficerID != nil {
		if _, ok := s.data.users[*l.AssignedOfficerID]; !ok {
			return missingReference(op, "assigned_officer_id")
		}
	}
	if l.PlotID != nil {
		if _, ok := s.data.plots[*l.PlotID]; !ok {
			return missingReference(op, "plot_id")
		}
	}
	return nil
}

func (s *Store) checkLead(op string, id uuid.UUID) error {
	if _, ok := s.data.leads[id]; !ok {
		return missingReference(op, "lead_id")
	}
	return nil
}

// ---- leads ----

func (s *Store) CreateLead(ctx context.Context, lead domain.Lead) error {
	defer s.lock()()
	if err := s.fault("CreateLead"); err != nil {
		return err
	}
	if err := s.checkLeadRefs("create lead", lead); err != nil {
		return err
	}
	if _, exists := s.data.leads[lead.ID]; exists {
		return apperr.Integrity("constraint violation: crm_leads_pkey").WithOp("create lead")
	}
	if lead.Details == nil {
		lead.Details = map[string]any{}
	}
	s.data.leads[lead.ID] = lead
	return nil
}

func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	defer s.lock()()
	lead, ok := s.data.leads[id]
	if !ok {
		return domain.Lead{}, notFound("get lead", "lead not found")
	}
	return lead, nil
}

func (s *Store) GetLeadForUpdate(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	defer s.lock()()
	if err := s.fault("GetLeadForUpdate"); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := s.data.leads[id]
	if !ok {
		return domain.Lead{}, notFound("lock lead", "lead not found")
	}
	return lead, nil
}

func (s *Store) UpdateLead(ctx context.Context, lead domain.Lead) error {
	defer s.lock()()
	if err := s.fault("UpdateLead"); err != nil {
		return err
	}
	current, ok := s.data.leads[lead.ID]
	if !ok {
		return notFound("update lead", "lead not found")
	}
	if err := s.checkLeadRefs("update lead", lead); err != nil {
		return err
	}
	lead.CurrentStage = current.CurrentStage
	lead.CurrentApproval = current.CurrentApproval
	lead.CreatedAt = current.CreatedAt
	s.data.leads[lead.ID] = lead
	return nil
}

func (s *Store) SetLeadWorkflow(ctx context.Context, id uuid.UUID, stage domain.Stage, approval domain.ApprovalState) error {
	defer s.lock()()
	if err := s.fault("SetLeadWorkflow"); err != nil {
		return err
	}
	lead, ok := s.data.leads[id]
	if !ok {
		return notFound("set lead workflow", "lead not found")
	}
	lead.CurrentStage = &stage
	lead.CurrentApproval = &approval
	lead.UpdatedAt = time.Now().UTC()
	s.data.leads[id] = lead
	return nil
}

func (s *Store) ListLeads(ctx context.Context, f repository.LeadFilter) ([]domain.Lead, error) {
	defer s.lock()()
	out := make([]domain.Lead, 0)
	for _, l := range s.data.leads {
		if !matchUUID(f.PropertyID, &l.PropertyID) || !matchUUID(f.PhaseID, l.PhaseID) ||
			!matchUUID(f.PlotID, l.PlotID) || !matchUUID(f.CustomerID, &l.CustomerID) ||
			!matchUUID(f.OfficerID, l.AssignedOfficerID) {
			continue
		}
		if f.Stage != nil && (l.CurrentStage == nil || *l.CurrentStage != *f.Stage) {
			continue
		}
		if f.Approval != nil && (l.CurrentApproval == nil || *l.CurrentApproval != *f.Approval) {
			continue
		}
		if f.IsActive != nil && l.IsActive != *f.IsActive {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Lead) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) DeactivateStaleLeads(ctx context.Context, before time.Time) (int64, error) {
	defer s.lock()()
	var n int64
	for id, l := range s.data.leads {
		if l.IsActive && l.UpdatedAt.Before(before) {
			l.IsActive = false
			l.UpdatedAt = time.Now().UTC()
			s.data.leads[id] = l
			n++
		}
	}
	return n, nil
}

// ---- status change requests ----

func (s *Store) CreateStatusRequest(ctx context.Context, req domain.StatusChangeRequest) error {
	defer s.lock()()
	if err := s.fault("CreateStatusRequest"); err != nil {
		return err
	}
	if err := s.checkLead("create status change request", req.LeadID); err != nil {
		return err
	}
	s.data.requests = append(s.data.requests, req)
	return nil
}

func (s *Store) findRequest(id uuid.UUID) int {
	return slices.IndexFunc(s.data.requests, func(r domain.StatusChangeRequest) bool { return r.ID == id })
}

func (s *Store) GetStatusRequest(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error) {
	defer s.lock()()
	i := s.findRequest(id)
	if i < 0 {
		return domain.StatusChangeRequest{}, notFound("get status change request", "status change request not found")
	}
	return s.data.requests[i], nil
}

func (s *Store) GetStatusRequestForUpdate(ctx context.Context, id uuid.UUID) (domain.StatusChangeRequest, error) {
	return s.GetStatusRequest(ctx, id)
}

func (s *Store) UpdateStatusDecision(ctx context.Context, req domain.StatusChangeRequest) error {
	defer s.lock()()
	if err := s.fault("UpdateStatusDecision"); err != nil {
		return err
	}
	i := s.findRequest(req.ID)
	if i < 0 {
		return notFound("decide status change request", "status change request not found")
	}
	current := s.data.requests[i]
	current.Approval = req.Approval
	current.ActionedBy = req.ActionedBy
	current.Remarks = req.Remarks
	if current.ApprovedAt == nil {
		current.ApprovedAt = req.ApprovedAt
	}
	if current.RejectedAt == nil {
		current.RejectedAt = req.RejectedAt
	}
	current.UpdatedAt = req.UpdatedAt
	s.data.requests[i] = current
	return nil
}

func (s *Store) ListStatusRequests(ctx context.Context, f repository.StatusRequestFilter) ([]domain.StatusChangeRequest, error) {
	defer s.lock()()
	out := make([]domain.StatusChangeRequest, 0)
	for i := len(s.data.requests) - 1; i >= 0; i-- {
		r := s.data.requests[i]
		if !matchUUID(f.LeadID, &r.LeadID) || !matchUUID(f.RequestedBy, r.RequestedBy) || !matchUUID(f.ActionedBy, r.ActionedBy) {
			continue
		}
		if f.Stage != nil && r.RequestedStage != *f.Stage {
			continue
		}
		if f.Approval != nil && r.Approval != *f.Approval {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) LatestStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error) {
	defer s.lock()()
	for i := len(s.data.requests) - 1; i >= 0; i-- {
		r := s.data.requests[i]
		if r.LeadID == leadID && r.RequestedStage == stage {
			return r, true, nil
		}
	}
	return domain.StatusChangeRequest{}, false, nil
}

func (s *Store) LiveStatusRequest(ctx context.Context, leadID uuid.UUID, stage domain.Stage) (domain.StatusChangeRequest, bool, error) {
	defer s.lock()()
	for i := len(s.data.requests) - 1; i >= 0; i-- {
		r := s.data.requests[i]
		if r.LeadID == leadID && r.RequestedStage == stage && r.Approval.IsLive() {
			return r, true, nil
		}
	}
	return domain.StatusChangeRequest{}, false, nil
}

// ---- payments ----

func (s *Store) CreatePayment(ctx context.Context, p domain.Payment) error {
	defer s.lock()()
	if err := s.fault("CreatePayment"); err != nil {
		return err
	}
	if err := s.checkLead("create payment", p.LeadID); err != nil {
		return err
	}
	for _, existing := range s.data.payments {
		if existing.BackendReference == p.BackendReference {
			return repository.ErrReferenceTaken
		}
	}
	s.data.payments = append(s.data.payments, p)
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	defer s.lock()()
	for _, p := range s.data.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, notFound("get payment", "payment not found")
}

func (s *Store) ListPayments(ctx context.Context, f repository.PaymentFilter) ([]domain.Payment, error) {
	defer s.lock()()
	out := make([]domain.Payment, 0)
	for i := len(s.data.payments) - 1; i >= 0; i-- {
		p := s.data.payments[i]
		if !matchUUID(f.LeadID, &p.LeadID) {
			continue
		}
		if (f.Method != nil && p.Method != *f.Method) || (f.Status != nil && p.Status != *f.Status) ||
			(f.Purpose != nil && p.Purpose != *f.Purpose) {
			continue
		}
		if f.PaidFrom != nil && (p.PaidAt == nil || p.PaidAt.Before(*f.PaidFrom)) {
			continue
		}
		if f.PaidTo != nil && (p.PaidAt == nil || p.PaidAt.After(*f.PaidTo)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CountPayments(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (int, error) {
	defer s.lock()()
	n := 0
	for _, p := range s.data.payments {
		if p.LeadID == leadID && p.Purpose == purpose {
			n++
		}
	}
	return n, nil
}

func (s *Store) EarliestPayment(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose) (domain.Payment, bool, error) {
	defer s.lock()()
	var earliest domain.Payment
	found := false
	for _, p := range s.data.payments {
		if p.LeadID != leadID || p.Purpose != purpose {
			continue
		}
		if !found || p.CreatedAt.Before(earliest.CreatedAt) {
			earliest = p
			found = true
		}
	}
	return earliest, found, nil
}

func (s *Store) SetPaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	defer s.lock()()
	if err := s.fault("SetPaymentStatus"); err != nil {
		return err
	}
	for i, p := range s.data.payments {
		if p.ID == id {
			s.data.payments[i].Status = status
			s.data.payments[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return notFound("set payment status", "payment not found")
}

func (s *Store) SetPaymentStatusByPurpose(ctx context.Context, leadID uuid.UUID, purpose domain.PaymentPurpose, status domain.PaymentStatus) (int64, error) {
	defer s.lock()()
	if err := s.fault("SetPaymentStatusByPurpose"); err != nil {
		return 0, err
	}
	var n int64
	for i, p := range s.data.payments {
		if p.LeadID == leadID && p.Purpose == purpose {
			s.data.payments[i].Status = status
			s.data.payments[i].UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

// ---- site visits ----

func (s *Store) CreateSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	defer s.lock()()
	if err := s.fault("CreateSiteVisit"); err != nil {
		return err
	}
	if err := s.checkLead("create site visit", v.LeadID); err != nil {
		return err
	}
	s.data.visits = append(s.data.visits, v)
	return nil
}

func (s *Store) GetSiteVisit(ctx context.Context, id uuid.UUID) (domain.SiteVisit, error) {
	defer s.lock()()
	for _, v := range s.data.visits {
		if v.ID == id {
			return v, nil
		}
	}
	return domain.SiteVisit{}, notFound("get site visit", "site visit not found")
}

func (s *Store) UpdateSiteVisit(ctx context.Context, v domain.SiteVisit) error {
	defer s.lock()()
	for i, existing := range s.data.visits {
		if existing.ID == v.ID {
			v.LeadID = existing.LeadID
			v.CreatedAt = existing.CreatedAt
			s.data.visits[i] = v
			return nil
		}
	}
	return notFound("update site visit", "site visit not found")
}

func (s *Store) ListSiteVisits(ctx context.Context, f repository.SiteVisitFilter) ([]domain.SiteVisit, error) {
	defer s.lock()()
	out := make([]domain.SiteVisit, 0)
	for i := len(s.data.visits) - 1; i >= 0; i-- {
		v := s.data.visits[i]
		if !matchUUID(f.LeadID, &v.LeadID) {
			continue
		}
		if (f.IsPickup != nil && v.IsPickup != *f.IsPickup) || (f.IsDrop != nil && v.IsDrop != *f.IsDrop) {
			continue
		}
		if f.PickupDate != nil && (v.PickupDate == nil || !sameDay(*v.PickupDate, *f.PickupDate)) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// ---- status logs ----

func (s *Store) AppendStatusLog(ctx context.Context, e domain.StatusLog) error {
	defer s.lock()()
	if err := s.fault("AppendStatusLog"); err != nil {
		return err
	}
	s.data.logs = append(s.data.logs, e)
	return nil
}

func (s *Store) ListStatusLogs(ctx context.Context, leadID uuid.UUID) ([]domain.StatusLog, error) {
	defer s.lock()()
	out := make([]domain.StatusLog, 0)
	for _, e := range s.data.logs {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ---- catalog and identity ----

func (s *Store) GetPlot(ctx context.Context, id uuid.UUID) (ports.Plot, error) {
	defer s.lock()()
	p, ok := s.data.plots[id]
	if !ok {
		return ports.Plot{}, notFound("get plot", "plot not found")
	}
	return p, nil
}

func (s *Store) MarkPlotSold(ctx context.Context, id uuid.UUID) error {
	defer s.lock()()
	p, ok := s.data.plots[id]
	if !ok {
		return notFound("mark plot sold", "plot not found")
	}
	p.IsSold = true
	s.data.plots[id] = p
	return nil
}

func (s *Store) UserExists(ctx context.Context, id uuid.UUID) (bool, error) {
	defer s.lock()()
	_, ok := s.data.users[id]
	return ok, nil
}

func (s *Store) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	defer s.lock()()
	_, ok := s.data.customers[id]
	return ok, nil
}

func (s *Store) OfficerPerformance(ctx context.Context, officerID uuid.UUID) (domain.OfficerPerformance, error) {
	defer s.lock()()
	perf := domain.OfficerPerformance{OfficerID: officerID, LeadsByStage: make(map[domain.Stage]int)}
	owned := make(map[uuid.UUID]bool)
	for _, l := range s.data.leads {
		if l.AssignedOfficerID == nil || *l.AssignedOfficerID != officerID {
			continue
		}
		owned[l.ID] = true
		if l.CurrentStage == nil {
			perf.LeadsWithoutStage++
			continue
		}
		perf.LeadsByStage[*l.CurrentStage]++
	}
	for _, r := range s.data.requests {
		if !owned[r.LeadID] {
			continue
		}
		switch {
		case r.Approval == domain.ApprovalApproved || r.Approval == domain.ApprovalCompleted:
			perf.ApprovedRequests++
		case r.Approval == domain.ApprovalRejected:
			perf.RejectedRequests++
		case r.Approval.IsLive():
			perf.PendingRequests++
		}
	}
	for _, p := range s.data.payments {
		if owned[p.LeadID] && p.Status == domain.PaymentCompleted {
			perf.CompletedPaymentsCents += p.AmountCents
		}
	}
	return perf, nil
}

func matchUUID(want, got *uuid.UUID) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
