package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-payroll/internal/shared"
)

type stubVerifier struct {
	ids      []int64
	verified []int64
	drift    map[int64]bool
}

func (s *stubVerifier) CalculatedPeriodIDs(ctx context.Context) ([]int64, error) {
	return s.ids, nil
}

func (s *stubVerifier) VerifyTotals(ctx context.Context, periodID int64) (bool, error) {
	s.verified = append(s.verified, periodID)
	return !s.drift[periodID], nil
}

func TestIntegrityHandlerScansAllCalculatedPeriods(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := &stubVerifier{ids: []int64{1, 2, 3}, drift: map[int64]bool{2: true}}
	handler := NewIntegrityHandler(svc, client, nil)

	require.NoError(t, handler(context.Background(), NewIntegrityTask()))
	require.Equal(t, []int64{1, 2, 3}, svc.verified)

	// The lock is released so the next run scans again.
	require.NoError(t, handler(context.Background(), NewIntegrityTask()))
	require.Len(t, svc.verified, 6)
}

func TestIntegrityHandlerSkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), shared.IntegrityScanLockKey(), 1, 0).Err())

	svc := &stubVerifier{ids: []int64{1}}
	handler := NewIntegrityHandler(svc, client, nil)

	require.NoError(t, handler(context.Background(), NewIntegrityTask()))
	require.Empty(t, svc.verified)
}

func TestIntegrityHandlerRunsWithoutRedis(t *testing.T) {
	svc := &stubVerifier{ids: []int64{5}}
	handler := NewIntegrityHandler(svc, nil, nil)

	require.NoError(t, handler(context.Background(), NewIntegrityTask()))
	require.Equal(t, []int64{5}, svc.verified)
}
