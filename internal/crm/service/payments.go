package service

import (
	"context"
	"errors"

	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/transport"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const maxReferenceAttempts = 5

// PaymentService records payments. Payments are append-only: only the
// approval cascade changes their status afterwards.
type PaymentService struct {
	Deps
	refs *domain.ReferenceGenerator
}

// NewPaymentService creates a payment service.
func NewPaymentService(deps Deps, refs *domain.ReferenceGenerator) *PaymentService {
	return &PaymentService{Deps: deps, refs: refs}
}

// Create inserts a pending payment and runs the workflow for its purpose in
// the same transaction.
func (s *PaymentService) Create(ctx context.Context, actorID uuid.UUID, req transport.CreatePaymentRequest) (transport.PaymentResponse, error) {
	method, err := domain.ParsePaymentMethod(req.Method)
	if err != nil {
		return transport.PaymentResponse{}, apperr.Validation("unknown payment method").
			WithDetails(map[string]string{"method": "unknown"})
	}
	purpose, err := domain.ParsePaymentPurpose(req.Purpose)
	if err != nil {
		return transport.PaymentResponse{}, apperr.Validation("unknown payment purpose").
			WithDetails(map[string]string{"purpose": "unknown"})
	}
	if req.AmountCents == nil || *req.AmountCents < 0 {
		return transport.PaymentResponse{}, apperr.Validation("amount must not be negative").
			WithDetails(map[string]string{"amountCents": "gte=0"})
	}

	var payment domain.Payment
	for attempt := 1; ; attempt++ {
		now := s.now()
		payment = domain.Payment{
			ID:               uuid.New(),
			LeadID:           req.LeadID,
			AmountCents:      *req.AmountCents,
			Method:           method,
			Status:           domain.PaymentPending,
			Purpose:          purpose,
			Description:      sanitize.Text(req.Description),
			ReferenceNumber:  sanitize.Text(req.ReferenceNumber),
			BackendReference: s.refs.Next(),
			PaidAt:           req.PaidAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		err = s.inTx(ctx, func(tx repository.Store, out *emitter) error {
			if err := tx.CreatePayment(ctx, payment); err != nil {
				return err
			}
			res, err := s.Flow.Handle(ctx, tx, &actorID, workflow.PaymentRecorded{LeadID: payment.LeadID, Purpose: purpose})
			if err != nil {
				return err
			}
			out.emit(events.PaymentRecorded{
				BaseEvent:        events.NewBaseEvent(),
				LeadID:           payment.LeadID,
				PaymentID:        payment.ID,
				Purpose:          string(purpose),
				AmountCents:      payment.AmountCents,
				BackendReference: payment.BackendReference,
			})
			out.workflowResult(res)
			return nil
		})
		if errors.Is(err, repository.ErrReferenceTaken) && attempt < maxReferenceAttempts {
			s.Log.Warn("backend reference collision, regenerating", "reference", payment.BackendReference, "attempt", attempt)
			continue
		}
		break
	}
	if errors.Is(err, repository.ErrReferenceTaken) {
		return transport.PaymentResponse{}, apperr.Integrity("could not allocate a unique backend reference")
	}
	if err != nil {
		return transport.PaymentResponse{}, err
	}

	s.Log.Info("payment recorded", "id", payment.ID, "leadId", payment.LeadID, "purpose", purpose, "reference", payment.BackendReference)
	return toPaymentResponse(payment), nil
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (transport.PaymentResponse, error) {
	p, err := s.Repo.GetPayment(ctx, id)
	if err != nil {
		return transport.PaymentResponse{}, err
	}
	return toPaymentResponse(p), nil
}

// List returns payments matching the filter. StartTime and EndTime bound paid_at.
func (s *PaymentService) List(ctx context.Context, req transport.ListPaymentsRequest) (transport.PaymentListResponse, error) {
	filter := repository.PaymentFilter{
		LeadID:   parseUUIDFilter(req.LeadID),
		PaidFrom: req.StartTime,
		PaidTo:   req.EndTime,
	}
	if req.Method != "" {
		m, err := domain.ParsePaymentMethod(req.Method)
		if err != nil {
			return transport.PaymentListResponse{}, apperr.Validation(err.Error())
		}
		filter.Method = &m
	}
	if req.Status != "" {
		st, err := domain.ParsePaymentStatus(req.Status)
		if err != nil {
			return transport.PaymentListResponse{}, apperr.Validation(err.Error())
		}
		filter.Status = &st
	}
	if req.Purpose != "" {
		p, err := domain.ParsePaymentPurpose(req.Purpose)
		if err != nil {
			return transport.PaymentListResponse{}, apperr.Validation(err.Error())
		}
		filter.Purpose = &p
	}
	if filter.PaidFrom != nil && filter.PaidTo != nil && filter.PaidTo.Before(*filter.PaidFrom) {
		return transport.PaymentListResponse{}, apperr.Validation("endTime is before startTime").
			WithDetails(map[string]string{"endTime": "before startTime"})
	}

	items, err := s.Repo.ListPayments(ctx, filter)
	if err != nil {
		return transport.PaymentListResponse{}, err
	}
	return transport.PaymentListResponse{Items: mapAll(items, toPaymentResponse), Total: len(items)}, nil
}
