package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPayrollRecalculate recomputes one period's totals off the request path.
	TaskPayrollRecalculate = "payroll:recalculate"
	// TaskPayrollIntegrity re-derives totals for all calculated periods and
	// reports drift between stored and recomputed values.
	TaskPayrollIntegrity = "payroll:totals:integrity"
)

// RecalculatePayload identifies the period to recompute and the requesting actor.
type RecalculatePayload struct {
	PeriodID int64 `json:"period_id"`
	ActorID  int64 `json:"actor_id"`
}

// NewRecalculateTask constructs an Asynq task for one period recalculation.
func NewRecalculateTask(payload RecalculatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayrollRecalculate, data), nil
}

// NewIntegrityTask constructs the nightly totals integrity task.
func NewIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskPayrollIntegrity, nil)
}
