// Package service holds the CRM use cases. Each write runs in one
// transaction together with the workflow coordinator; domain events are
// published only after the transaction commits.
package service

import (
	"context"
	"time"

	"estate_crm_backend/internal/crm/repository"
	"estate_crm_backend/internal/crm/workflow"
	"estate_crm_backend/internal/events"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Deps are shared by every CRM service.
type Deps struct {
	Repo repository.Repository
	Flow *workflow.Coordinator
	Bus  events.Bus
	Log  *logger.Logger
	Now  func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

// emitter collects events raised inside a transaction.
type emitter struct {
	pending []events.Event
}

func (e *emitter) emit(ev events.Event) {
	e.pending = append(e.pending, ev)
}

// workflowResult turns a coordinator result into the events it implies.
func (e *emitter) workflowResult(res workflow.Result) {
	if res.Opened && res.Request != nil {
		e.emit(events.StatusChangeRequested{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      res.Request.LeadID,
			RequestID:   res.Request.ID,
			Stage:       res.Request.RequestedStage.String(),
			RequestedBy: res.Request.RequestedBy,
		})
	}
}

// inTx runs fn in one transaction and publishes what it emitted once committed.
func (d Deps) inTx(ctx context.Context, fn func(tx repository.Store, out *emitter) error) error {
	out := &emitter{}
	err := d.Repo.WithinTx(ctx, func(tx repository.Store) error {
		out.pending = out.pending[:0]
		return fn(tx, out)
	})
	if err != nil {
		return err
	}
	if d.Bus == nil {
		return nil
	}
	for _, ev := range out.pending {
		d.Bus.Publish(ctx, ev)
	}
	return nil
}

// checkRef fails with a field-level validation error when lookup reports id missing.
func checkRef(ctx context.Context, field string, id uuid.UUID, lookup func(context.Context, uuid.UUID) (bool, error)) error {
	ok, err := lookup(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("referenced record does not exist").
			WithDetails(map[string]string{field: "does not exist"})
	}
	return nil
}

func parseUUIDFilter(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
