package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *miniredis.Miniredis, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewService(nil, NewCache(client, ttl), nil)
	loads := 0
	svc.loader = func(ctx context.Context, actorID int64) ([]Capability, error) {
		loads++
		if actorID == 7 {
			return []Capability{CapabilityLock, CapabilityApprove}, nil
		}
		return []Capability{}, nil
	}
	return svc, mr, &loads
}

func TestAllowCachesCapabilitySet(t *testing.T) {
	svc, _, loads := newTestService(t, time.Minute)

	allowed, err := svc.Allow(context.Background(), 7, CapabilityLock)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, *loads)

	allowed, err = svc.Allow(context.Background(), 7, CapabilityApprove)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, *loads, "second check must come from the cache")

	allowed, err = svc.Allow(context.Background(), 7, CapabilityPay)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestAllowDistinguishesActors(t *testing.T) {
	svc, _, _ := newTestService(t, time.Minute)

	allowed, err := svc.Allow(context.Background(), 8, CapabilityLock)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = svc.Allow(context.Background(), 7, CapabilityLock)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestCapabilitiesRequiresActor(t *testing.T) {
	svc, _, _ := newTestService(t, time.Minute)

	_, err := svc.Capabilities(context.Background(), 0)
	require.ErrorIs(t, err, ErrActorRequired)
}

func TestCacheExpiry(t *testing.T) {
	svc, mr, loads := newTestService(t, time.Minute)

	_, err := svc.Capabilities(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, *loads)

	mr.FastForward(2 * time.Minute)

	_, err = svc.Capabilities(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, *loads, "expired entry must trigger a reload")
}

func TestInvalidateForcesReload(t *testing.T) {
	svc, _, loads := newTestService(t, time.Minute)

	_, err := svc.Capabilities(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, svc.cache.Invalidate(context.Background(), 7))

	_, err = svc.Capabilities(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, *loads)
}

func TestCacheMissWithoutRedisFallsThrough(t *testing.T) {
	svc := NewService(nil, NewCache(nil, time.Minute), nil)
	loads := 0
	svc.loader = func(ctx context.Context, actorID int64) ([]Capability, error) {
		loads++
		return []Capability{CapabilityPay}, nil
	}

	for i := 0; i < 2; i++ {
		allowed, err := svc.Allow(context.Background(), 3, CapabilityPay)
		require.NoError(t, err)
		require.True(t, allowed)
	}
	require.Equal(t, 2, loads, "no cache backend means every check hits the loader")
}
