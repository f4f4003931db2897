package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/atlas-erp/atlas-payroll/internal/authz"
	"github.com/atlas-erp/atlas-payroll/internal/identity"
	"github.com/atlas-erp/atlas-payroll/internal/shared"
)

// IdentityDirectory resolves employee references and supplies the external
// per-employee monetary inputs. Satisfied by *identity.Service.
type IdentityDirectory interface {
	GetEmployee(ctx context.Context, tenantID, employeeID int64) (identity.Employee, error)
	BaseAmounts(ctx context.Context, tenantID int64, employeeIDs []int64) (map[int64]identity.BaseAmount, error)
}

// Authorizer answers capability checks. Satisfied by *authz.Service.
type Authorizer interface {
	Allow(ctx context.Context, actorID int64, cap authz.Capability) (bool, error)
}

// Service is the sole entry point for payroll period operations. Every
// mutation runs inside the period's exclusive section; identity and
// authorization lookups always happen before the section is acquired so a
// slow collaborator never blocks unrelated work on the same period.
type Service struct {
	repo       Repository
	directory  IdentityDirectory
	authorizer Authorizer
	audit      shared.AuditSink
	locks      *shared.PeriodLocks
	rates      Rates
	logger     *slog.Logger
	now        func() time.Time

	listGroup singleflight.Group
}

// NewService constructs a Service instance.
func NewService(repo Repository, directory IdentityDirectory, authorizer Authorizer, audit shared.AuditSink, rates Rates, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		directory:  directory,
		authorizer: authorizer,
		audit:      audit,
		locks:      shared.NewPeriodLocks(),
		rates:      rates,
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreatePeriod opens a new draft period for the tenant's month/year pair.
func (s *Service) CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var e error
		period, e = tx.InsertPeriod(ctx, in, uuid.New(), s.now())
		return e
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, in.ActorID, "payroll.period.create", period.ID, map[string]any{
		"tenant_id": in.TenantID,
		"month":     in.Month,
		"year":      in.Year,
	})
	return period, nil
}

// GetPeriod returns a period with its entries materialized.
func (s *Service) GetPeriod(ctx context.Context, periodID int64) (Period, error) {
	period, err := s.repo.GetPeriodWithEntries(ctx, periodID)
	if err != nil {
		return Period{}, err
	}
	if period.Retired() {
		return Period{}, ErrPeriodNotFound
	}
	return period, nil
}

type periodPage struct {
	periods []Period
	total   int
}

// ListPeriods returns period summaries for the tenant, most recent first.
// Concurrent identical listings collapse onto one repository round trip.
func (s *Service) ListPeriods(ctx context.Context, tenantID int64, page, perPage int) ([]Period, shared.Pagination, error) {
	pg := shared.NewPagination(page, perPage, 0)
	key := strconv.FormatInt(tenantID, 10) + ":" + strconv.Itoa(pg.Page) + ":" + strconv.Itoa(pg.PerPage)
	v, err, _ := s.listGroup.Do(key, func() (any, error) {
		// Waiters collapsed onto this flight share its result, so the
		// repository calls must not die with the first caller's context.
		ctx := context.WithoutCancel(ctx)
		total, err := s.repo.CountPeriods(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		limit, offset := pg.Window()
		periods, err := s.repo.ListPeriods(ctx, tenantID, limit, offset)
		if err != nil {
			return nil, err
		}
		return periodPage{periods: periods, total: total}, nil
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	result := v.(periodPage)
	return result.periods, shared.NewPagination(pg.Page, pg.PerPage, result.total), nil
}

// ListEntries returns the period's entries ordered by employee display name.
func (s *Service) ListEntries(ctx context.Context, periodID int64) ([]Entry, error) {
	if _, err := s.GetPeriod(ctx, periodID); err != nil {
		return nil, err
	}
	return s.repo.ListEntries(ctx, periodID)
}

// UpsertEntry creates or overwrites the adjustment row for (period, employee).
// Idempotent on identical input apart from the update stamp.
func (s *Service) UpsertEntry(ctx context.Context, in UpsertEntryInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	period, err := s.GetPeriod(ctx, in.PeriodID)
	if err != nil {
		return Entry{}, err
	}

	// Identity resolution stays outside the critical section.
	employee, err := s.directory.GetEmployee(ctx, period.TenantID, in.EmployeeID)
	if err != nil {
		if errors.Is(err, identity.ErrEmployeeNotFound) {
			return Entry{}, ErrEmployeeNotFound
		}
		return Entry{}, err
	}

	release := s.locks.Acquire(in.PeriodID)
	defer release()

	var entry Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if !current.Editable() {
			return ErrPeriodNotEditable
		}
		entry, err = tx.UpsertEntry(ctx, in, s.now())
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	entry.EmployeeName = employee.FullName
	s.recordAudit(ctx, in.ActorID, "payroll.entry.upsert", in.PeriodID, map[string]any{
		"employee_id": in.EmployeeID,
	})
	return entry, nil
}

// RemoveEntry deletes the adjustment row for (period, employee).
func (s *Service) RemoveEntry(ctx context.Context, periodID, employeeID, actorID int64) error {
	if periodID == 0 || employeeID == 0 || actorID == 0 {
		return errors.New("payroll: period, employee and actor are required")
	}
	release := s.locks.Acquire(periodID)
	defer release()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Retired() {
			return ErrPeriodNotFound
		}
		if !current.Editable() {
			return ErrPeriodNotEditable
		}
		return tx.DeleteEntry(ctx, periodID, employeeID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "payroll.entry.remove", periodID, map[string]any{
		"employee_id": employeeID,
	})
	return nil
}

// Transition moves the period along the lifecycle graph. The capability check
// runs before the exclusive section; the transition is re-validated against
// the current status inside it, so the loser of a concurrent race observes
// the post-transition state and gets ErrInvalidTransition back.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (Period, error) {
	if err := in.Validate(); err != nil {
		return Period{}, err
	}
	period, err := s.GetPeriod(ctx, in.PeriodID)
	if err != nil {
		return Period{}, err
	}
	rule, ok := transitionRuleFor(period.Status, in.Target)
	if !ok {
		return Period{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, period.Status, in.Target)
	}
	if err := s.authorize(ctx, in.ActorID, rule.capability); err != nil {
		return Period{}, err
	}

	// Base amounts are fetched before the lock. Entries are immutable outside
	// Draft and every recalculating edge starts from a non-Draft status, so
	// the employee set cannot change underneath the prefetch.
	var base map[int64]identity.BaseAmount
	if rule.recalculates {
		base, err = s.baseAmountsFor(ctx, period)
		if err != nil {
			return Period{}, err
		}
	}

	release := s.locks.Acquire(in.PeriodID)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if current.Retired() {
			return ErrPeriodNotFound
		}
		// The capability was checked against the status read before the
		// exclusive section. A different status here means another transition
		// won the race; the caller must observe the new state and start over
		// rather than ride a differently-privileged edge through.
		if current.Status != period.Status {
			return fmt.Errorf("%w: period moved from %s to %s", ErrInvalidTransition, period.Status, current.Status)
		}
		entries, err := tx.ListEntries(ctx, in.PeriodID)
		if err != nil {
			return err
		}
		if rule.requiresEntries && len(entries) == 0 {
			return fmt.Errorf("%w: period has no entries", ErrInvalidTransition)
		}

		next := applyTransition(current, in.Target, in.ActorID, s.now())
		if rule.recalculates {
			totals, results, err := Aggregate(entries, base, s.rates)
			if err != nil {
				return err
			}
			next.Totals = totals
			if err := tx.ReplaceResults(ctx, in.PeriodID, results, s.now()); err != nil {
				return err
			}
		}
		return tx.UpdatePeriod(ctx, next)
	})
	release()
	if err != nil {
		return Period{}, err
	}

	s.recordAudit(ctx, in.ActorID, "payroll.period.transition", in.PeriodID, map[string]any{
		"from": string(period.Status),
		"to":   string(in.Target),
	})
	return s.GetPeriod(ctx, in.PeriodID)
}

// Recalculate recomputes totals from the current entry set. Valid from
// Locked, Calculated or Approved; recalculating an approved period drops the
// approval and returns it to Calculated.
func (s *Service) Recalculate(ctx context.Context, periodID, actorID int64) (Period, error) {
	if periodID == 0 || actorID == 0 {
		return Period{}, errors.New("payroll: period and actor are required")
	}
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, err
	}

	capability := authz.CapabilityLock
	switch period.Status {
	case StatusLocked, StatusCalculated:
	case StatusApproved:
		capability = authz.CapabilityApprove
	default:
		return Period{}, fmt.Errorf("%w: cannot recalculate from %s", ErrInvalidTransition, period.Status)
	}
	if err := s.authorize(ctx, actorID, capability); err != nil {
		return Period{}, err
	}
	base, err := s.baseAmountsFor(ctx, period)
	if err != nil {
		return Period{}, err
	}

	release := s.locks.Acquire(periodID)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Retired() {
			return ErrPeriodNotFound
		}
		// Which capability gates the recalculation depends on the status; a
		// status change since the pre-lock check voids the authorization.
		if current.Status != period.Status {
			return fmt.Errorf("%w: period moved from %s to %s", ErrInvalidTransition, period.Status, current.Status)
		}
		entries, err := tx.ListEntries(ctx, periodID)
		if err != nil {
			return err
		}
		totals, results, err := Aggregate(entries, base, s.rates)
		if err != nil {
			return err
		}

		now := s.now()
		next := current
		if current.Status != StatusCalculated {
			next = applyTransition(current, StatusCalculated, actorID, now)
		} else {
			next.Updated = AuditStamp{ActorID: actorID, At: now}
			at := now
			next.CalculatedAt = &at
		}
		next.Totals = totals
		if err := tx.ReplaceResults(ctx, periodID, results, now); err != nil {
			return err
		}
		return tx.UpdatePeriod(ctx, next)
	})
	release()
	if err != nil {
		return Period{}, err
	}

	s.recordAudit(ctx, actorID, "payroll.period.recalculate", periodID, nil)
	return s.GetPeriod(ctx, periodID)
}

// RetirePeriod soft-deletes a draft period, freeing its (tenant, month, year)
// slot. The aggregate is retired as a whole; entries and results stay owned
// by the retired period and disappear with it.
func (s *Service) RetirePeriod(ctx context.Context, periodID, actorID int64) error {
	if periodID == 0 || actorID == 0 {
		return errors.New("payroll: period and actor are required")
	}
	if err := s.authorize(ctx, actorID, authz.CapabilityUnlock); err != nil {
		return err
	}

	release := s.locks.Acquire(periodID)
	defer release()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPeriodForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if current.Retired() {
			return ErrPeriodNotFound
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: only draft periods can be retired", ErrPeriodNotEditable)
		}
		return tx.RetirePeriod(ctx, periodID, actorID, s.now())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "payroll.period.retire", periodID, nil)
	return nil
}

// VerifyTotals recomputes a calculated period's totals and reports whether
// the stored values still match. Used by the nightly integrity scan.
func (s *Service) VerifyTotals(ctx context.Context, periodID int64) (bool, error) {
	period, err := s.GetPeriod(ctx, periodID)
	if err != nil {
		return false, err
	}
	if period.Status != StatusCalculated {
		return true, nil
	}
	base, err := s.baseAmountsFor(ctx, period)
	if err != nil {
		return false, err
	}
	entries, err := s.repo.ListEntries(ctx, periodID)
	if err != nil {
		return false, err
	}
	totals, _, err := Aggregate(entries, base, s.rates)
	if err != nil {
		return false, err
	}
	return period.Totals.Equal(totals), nil
}

// CalculatedPeriodIDs lists the periods eligible for the integrity scan.
func (s *Service) CalculatedPeriodIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListCalculatedPeriodIDs(ctx)
}

func (s *Service) authorize(ctx context.Context, actorID int64, cap authz.Capability) error {
	if cap == "" {
		return nil
	}
	allowed, err := s.authorizer.Allow(ctx, actorID, cap)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, strconv.FormatInt(actorID, 10), cap)
	}
	return nil
}

func (s *Service) baseAmountsFor(ctx context.Context, period Period) (map[int64]identity.BaseAmount, error) {
	entries, err := s.repo.ListEntries(ctx, period.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.EmployeeID)
	}
	return s.directory.BaseAmounts(ctx, period.TenantID, ids)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, periodID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		RequestID: uuid.New(),
		ActorID:   actorID,
		Action:    action,
		Entity:    "payroll_period",
		EntityID:  strconv.FormatInt(periodID, 10),
		Meta:      meta,
		At:        s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Error("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
