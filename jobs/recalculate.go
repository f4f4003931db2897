package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-erp/atlas-payroll/internal/payroll"
)

// Recalculator is the slice of the payroll service the worker needs.
type Recalculator interface {
	Recalculate(ctx context.Context, periodID, actorID int64) (payroll.Period, error)
}

// NewRecalculateHandler processes TaskPayrollRecalculate tasks.
func NewRecalculateHandler(svc Recalculator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RecalculatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		period, err := svc.Recalculate(ctx, payload.PeriodID, payload.ActorID)
		if err != nil {
			// Lifecycle rejections will not succeed on retry; surface them
			// once and drop the task.
			if errors.Is(err, payroll.ErrInvalidTransition) ||
				errors.Is(err, payroll.ErrPeriodNotFound) ||
				errors.Is(err, payroll.ErrPermissionDenied) {
				if logger != nil {
					logger.Warn("recalculate rejected",
						slog.Int64("period_id", payload.PeriodID), slog.Any("error", err))
				}
				return asynq.SkipRetry
			}
			return err
		}
		if logger != nil {
			logger.Info("period recalculated",
				slog.Int64("period_id", period.ID),
				slog.String("gross", period.Totals.Gross.String()))
		}
		return nil
	}
}
