package shared

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPeriodLocksMutualExclusion(t *testing.T) {
	locks := NewPeriodLocks()

	const workers = 16
	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			release := locks.Acquire(7)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)
	require.Empty(t, locks.locks, "registry should drain after release")
}

func TestPeriodLocksIndependentPeriods(t *testing.T) {
	locks := NewPeriodLocks()

	releaseA := locks.Acquire(1)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release := locks.Acquire(2)
		release()
		close(done)
	}()
	<-done
}

func TestPeriodLocksReleaseIsIdempotent(t *testing.T) {
	locks := NewPeriodLocks()
	release := locks.Acquire(3)
	release()
	release()

	release = locks.Acquire(3)
	release()
}
