// Package ports defines the collaborators the CRM context consumes from
// neighbouring domains. Implementations live in the repository so they join
// the caller's transaction.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// Plot is the catalog view of a plot needed for pricing a lead.
// PriceCents and AreaHundredths are nil when the catalog has no value.
type Plot struct {
	ID             uuid.UUID
	PriceCents     *int64
	AreaHundredths *int64
	IsSold         bool
}

// PlotCatalog reads and reserves plots.
type PlotCatalog interface {
	GetPlot(ctx context.Context, id uuid.UUID) (Plot, error)
	MarkPlotSold(ctx context.Context, id uuid.UUID) error
}

// IdentityDirectory answers existence checks for users and customers.
type IdentityDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
}
