package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskDeactivateStaleLeads = "crm.leads.deactivate_stale"

// DeactivateStaleLeadsPayload optionally overrides the configured inactivity
// window. Zero means use the worker's default.
type DeactivateStaleLeadsPayload struct {
	WindowSeconds int64 `json:"windowSeconds,omitempty"`
}

func (p DeactivateStaleLeadsPayload) window(fallback time.Duration) time.Duration {
	if p.WindowSeconds > 0 {
		return time.Duration(p.WindowSeconds) * time.Second
	}
	return fallback
}

func NewDeactivateStaleLeadsTask(payload DeactivateStaleLeadsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeactivateStaleLeads, data), nil
}

func ParseDeactivateStaleLeadsPayload(task *asynq.Task) (DeactivateStaleLeadsPayload, error) {
	var payload DeactivateStaleLeadsPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeactivateStaleLeadsPayload{}, err
	}
	return payload, nil
}
