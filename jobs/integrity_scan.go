package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-erp/atlas-payroll/internal/shared"
)

// TotalsVerifier is the slice of the payroll service the integrity scan needs.
type TotalsVerifier interface {
	CalculatedPeriodIDs(ctx context.Context) ([]int64, error)
	VerifyTotals(ctx context.Context, periodID int64) (bool, error)
}

// scanLockTTL bounds how long a crashed worker can hold the scan lock.
const scanLockTTL = 30 * time.Minute

// NewIntegrityHandler processes TaskPayrollIntegrity tasks. A redis lock
// keeps concurrent workers from scanning the same set twice; drift is logged,
// never auto-corrected, since recalculation is an operator decision.
func NewIntegrityHandler(svc TotalsVerifier, rdb *redis.Client, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if rdb != nil {
			ok, err := rdb.SetNX(ctx, shared.IntegrityScanLockKey(), time.Now().Unix(), scanLockTTL).Result()
			if err != nil {
				return err
			}
			if !ok {
				if logger != nil {
					logger.Info("integrity scan already running, skipping")
				}
				return nil
			}
			defer rdb.Del(context.WithoutCancel(ctx), shared.IntegrityScanLockKey())
		}

		ids, err := svc.CalculatedPeriodIDs(ctx)
		if err != nil {
			return err
		}
		drifted := 0
		for _, id := range ids {
			match, err := svc.VerifyTotals(ctx, id)
			if err != nil {
				if logger != nil {
					logger.Warn("verify totals", slog.Int64("period_id", id), slog.Any("error", err))
				}
				continue
			}
			if !match {
				drifted++
				if logger != nil {
					logger.Error("stored totals drift from recomputed values", slog.Int64("period_id", id))
				}
			}
		}
		if logger != nil {
			logger.Info("integrity scan complete",
				slog.Int("periods", len(ids)), slog.Int("drifted", drifted))
		}
		return nil
	}
}
