package service

import (
	"estate_crm_backend/internal/crm/domain"
	"estate_crm_backend/internal/crm/transport"
)

func stageName(s *domain.Stage) *string {
	if s == nil {
		return nil
	}
	name := s.String()
	return &name
}

func approvalName(a *domain.ApprovalState) *string {
	if a == nil {
		return nil
	}
	name := a.String()
	return &name
}

func toLeadResponse(l domain.Lead) transport.LeadResponse {
	details := l.Details
	if details == nil {
		details = map[string]any{}
	}
	var contact *string
	if l.InitialContactDate != nil {
		formatted := l.InitialContactDate.Format(transport.DateLayout)
		contact = &formatted
	}
	return transport.LeadResponse{
		ID:                 l.ID,
		PropertyID:         l.PropertyID,
		PhaseID:            l.PhaseID,
		PlotID:             l.PlotID,
		CustomerID:         l.CustomerID,
		AssignedOfficerID:  l.AssignedOfficerID,
		InitialContactDate: contact,
		TotalAmountCents:   l.TotalAmountCents,
		CurrentStage:       stageName(l.CurrentStage),
		CurrentApproval:    approvalName(l.CurrentApproval),
		Details:            details,
		IsActive:           l.IsActive,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
}

func toStatusRequestResponse(r domain.StatusChangeRequest) transport.StatusRequestResponse {
	return transport.StatusRequestResponse{
		ID:             r.ID,
		LeadID:         r.LeadID,
		RequestedBy:    r.RequestedBy,
		ActionedBy:     r.ActionedBy,
		RequestedStage: r.RequestedStage.String(),
		Approval:       r.Approval.String(),
		Remarks:        r.Remarks,
		RequestedAt:    r.RequestedAt,
		ApprovedAt:     r.ApprovedAt,
		RejectedAt:     r.RejectedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func toPaymentResponse(p domain.Payment) transport.PaymentResponse {
	return transport.PaymentResponse{
		ID:               p.ID,
		LeadID:           p.LeadID,
		AmountCents:      p.AmountCents,
		Method:           p.Method.String(),
		Status:           p.Status.String(),
		Purpose:          string(p.Purpose),
		Description:      p.Description,
		ReferenceNumber:  p.ReferenceNumber,
		BackendReference: p.BackendReference,
		PaidAt:           p.PaidAt,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func toSiteVisitResponse(v domain.SiteVisit) transport.SiteVisitResponse {
	return transport.SiteVisitResponse{
		ID:            v.ID,
		LeadID:        v.LeadID,
		IsPickup:      v.IsPickup,
		PickupAddress: v.PickupAddress,
		PickupDate:    v.PickupDate,
		IsDrop:        v.IsDrop,
		DropAddress:   v.DropAddress,
		ContactPhone:  v.ContactPhone,
		Feedback:      v.Feedback,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func toStatusLogResponse(e domain.StatusLog) transport.StatusLogResponse {
	return transport.StatusLogResponse{
		ID:            e.ID,
		PreviousStage: stageName(e.PreviousStage),
		NewStage:      e.NewStage.String(),
		ChangedBy:     e.ChangedBy,
		Remarks:       e.Remarks,
		ChangedAt:     e.ChangedAt,
	}
}

func mapAll[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
