package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-payroll/internal/payroll"
)

type stubRecalculator struct {
	err   error
	calls int
}

func (s *stubRecalculator) Recalculate(ctx context.Context, periodID, actorID int64) (payroll.Period, error) {
	s.calls++
	return payroll.Period{ID: periodID, Status: payroll.StatusCalculated}, s.err
}

func TestRecalculateHandler(t *testing.T) {
	svc := &stubRecalculator{}
	handler := NewRecalculateHandler(svc, nil)

	task, err := NewRecalculateTask(RecalculatePayload{PeriodID: 42, ActorID: 7})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, svc.calls)
}

func TestRecalculateHandlerSkipsLifecycleRejections(t *testing.T) {
	for _, cause := range []error{
		payroll.ErrInvalidTransition,
		payroll.ErrPeriodNotFound,
		payroll.ErrPermissionDenied,
	} {
		svc := &stubRecalculator{err: cause}
		handler := NewRecalculateHandler(svc, nil)

		task, err := NewRecalculateTask(RecalculatePayload{PeriodID: 42, ActorID: 7})
		require.NoError(t, err)

		err = handler(context.Background(), task)
		require.ErrorIs(t, err, asynq.SkipRetry)
	}
}

func TestRecalculateHandlerRetriesTransientErrors(t *testing.T) {
	cause := errors.New("connection reset")
	handler := NewRecalculateHandler(&stubRecalculator{err: cause}, nil)

	task, err := NewRecalculateTask(RecalculatePayload{PeriodID: 42, ActorID: 7})
	require.NoError(t, err)

	err = handler(context.Background(), task)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRecalculateHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewRecalculateHandler(&stubRecalculator{}, nil)

	err := handler(context.Background(), asynq.NewTask(TaskPayrollRecalculate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
