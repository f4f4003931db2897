package shared

import "sync"

// PeriodLocks serializes mutating operations per payroll period. The lock
// scope is a single period id: unrelated periods proceed concurrently, and at
// most one period lock is ever held by an execution, so no deadlock is
// possible. Callers must resolve identity and authorization before acquiring.
type PeriodLocks struct {
	mu    sync.Mutex
	locks map[int64]*periodLock
}

type periodLock struct {
	mu   sync.Mutex
	refs int
}

// NewPeriodLocks constructs an empty lock registry.
func NewPeriodLocks() *PeriodLocks {
	return &PeriodLocks{locks: make(map[int64]*periodLock)}
}

// Acquire blocks until the period's exclusive section is held and returns the
// release function. Release must run on every exit path.
func (p *PeriodLocks) Acquire(periodID int64) func() {
	p.mu.Lock()
	l, ok := p.locks[periodID]
	if !ok {
		l = &periodLock{}
		p.locks[periodID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			p.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(p.locks, periodID)
			}
			p.mu.Unlock()
		})
	}
}

// IntegrityScanLockKey names the redis key guarding the nightly totals scan.
func IntegrityScanLockKey() string {
	return "payroll:integrity-scan:lock"
}
