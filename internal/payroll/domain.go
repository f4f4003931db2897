package payroll

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodStatus enumerates payroll period lifecycle stages.
type PeriodStatus string

const (
	StatusDraft      PeriodStatus = "DRAFT"
	StatusLocked     PeriodStatus = "LOCKED"
	StatusCalculated PeriodStatus = "CALCULATED"
	StatusApproved   PeriodStatus = "APPROVED"
	StatusPaid       PeriodStatus = "PAID"
)

// Valid reports whether the status is one of the known lifecycle stages.
func (s PeriodStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusLocked, StatusCalculated, StatusApproved, StatusPaid:
		return true
	default:
		return false
	}
}

// AuditStamp records who performed a lifecycle event and when.
type AuditStamp struct {
	ActorID int64     `json:"actor_id"`
	At      time.Time `json:"at"`
}

// Totals holds the five aggregate amounts stored on a period.
type Totals struct {
	Gross        decimal.Decimal `json:"gross"`
	Net          decimal.Decimal `json:"net"`
	TaxA         decimal.Decimal `json:"tax_a"`
	TaxB         decimal.Decimal `json:"tax_b"`
	EmployerCost decimal.Decimal `json:"employer_cost"`
}

// IsZero reports whether all five totals are zero.
func (t Totals) IsZero() bool {
	return t.Gross.IsZero() && t.Net.IsZero() && t.TaxA.IsZero() && t.TaxB.IsZero() && t.EmployerCost.IsZero()
}

// Equal compares totals for exact decimal equality.
func (t Totals) Equal(other Totals) bool {
	return t.Gross.Equal(other.Gross) &&
		t.Net.Equal(other.Net) &&
		t.TaxA.Equal(other.TaxA) &&
		t.TaxB.Equal(other.TaxB) &&
		t.EmployerCost.Equal(other.EmployerCost)
}

// Period is one month/year payroll processing batch for a tenant. Exactly one
// non-retired period may exist per (tenant, month, year).
type Period struct {
	ID        int64
	Reference uuid.UUID
	TenantID  int64
	Month     int
	Year      int
	Status    PeriodStatus
	Notes     string
	Totals    Totals

	Created      AuditStamp
	Updated      AuditStamp
	Locked       *AuditStamp
	CalculatedAt *time.Time
	Approved     *AuditStamp
	Paid         *AuditStamp
	RetiredAt    *time.Time

	Entries []Entry
}

// Retired reports whether the period has been soft-deleted.
func (p Period) Retired() bool {
	return p.RetiredAt != nil
}

// Editable reports whether entry mutation is permitted in the current state.
func (p Period) Editable() bool {
	return p.Status == StatusDraft && !p.Retired()
}

// Entry is one employee's manual adjustments within a period. Unique on
// (period, employee). The four adjustment fields are optional.
type Entry struct {
	ID               int64
	PeriodID         int64
	EmployeeID       int64
	EmployeeName     string
	Absences         decimal.NullDecimal
	CreditedAbsences decimal.NullDecimal
	OvertimeHours    decimal.NullDecimal
	Tardiness        decimal.NullDecimal
	Note             string
	Created          AuditStamp
	Updated          AuditStamp
}

// EntryFields carries the mutable portion of an entry for upserts.
type EntryFields struct {
	Absences         decimal.NullDecimal
	CreditedAbsences decimal.NullDecimal
	OvertimeHours    decimal.NullDecimal
	Tardiness        decimal.NullDecimal
	Note             string
}

// SameValues reports whether the entry already holds exactly these fields.
// Upserting identical values is a no-op apart from the update stamp.
func (e Entry) SameValues(f EntryFields) bool {
	return nullDecimalEqual(e.Absences, f.Absences) &&
		nullDecimalEqual(e.CreditedAbsences, f.CreditedAbsences) &&
		nullDecimalEqual(e.OvertimeHours, f.OvertimeHours) &&
		nullDecimalEqual(e.Tardiness, f.Tardiness) &&
		e.Note == f.Note
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	if !a.Valid {
		return true
	}
	return a.Decimal.Equal(b.Decimal)
}

// Result is the per-employee computed breakdown the aggregator produces one
// row of per employee. Owned by the period; never mutated outside recalculation.
type Result struct {
	ID         int64
	PeriodID   int64
	EmployeeID int64
	Gross      decimal.Decimal
	TaxA       decimal.Decimal
	TaxB       decimal.Decimal
	Net        decimal.Decimal
	CreatedAt  time.Time
}

// CreatePeriodInput captures validation rules for new periods.
type CreatePeriodInput struct {
	TenantID int64
	Month    int
	Year     int
	ActorID  int64
	Notes    string
}

// Validate ensures the create period input is coherent.
func (in CreatePeriodInput) Validate() error {
	if in.TenantID == 0 {
		return errors.New("payroll: tenant id required")
	}
	if in.Month < 1 || in.Month > 12 {
		return errors.New("payroll: month must be between 1 and 12")
	}
	if in.Year < 2000 || in.Year > 2200 {
		return errors.New("payroll: year out of range")
	}
	if in.ActorID == 0 {
		return errors.New("payroll: actor required")
	}
	return nil
}

// UpsertEntryInput bundles parameters for creating or overwriting an entry.
type UpsertEntryInput struct {
	PeriodID   int64
	EmployeeID int64
	ActorID    int64
	Fields     EntryFields
}

// Validate ensures the upsert input is coherent.
func (in UpsertEntryInput) Validate() error {
	if in.PeriodID == 0 {
		return errors.New("payroll: period id required")
	}
	if in.EmployeeID == 0 {
		return errors.New("payroll: employee id required")
	}
	if in.ActorID == 0 {
		return errors.New("payroll: actor required")
	}
	for _, f := range []decimal.NullDecimal{in.Fields.Absences, in.Fields.CreditedAbsences, in.Fields.OvertimeHours, in.Fields.Tardiness} {
		if f.Valid && f.Decimal.IsNegative() {
			return errors.New("payroll: adjustment fields cannot be negative")
		}
	}
	if len(strings.TrimSpace(in.Fields.Note)) > 2000 {
		return errors.New("payroll: note too long")
	}
	return nil
}

// TransitionInput bundles parameters for a status transition.
type TransitionInput struct {
	PeriodID int64
	Target   PeriodStatus
	ActorID  int64
}

// Validate ensures the transition input is coherent.
func (in TransitionInput) Validate() error {
	if in.PeriodID == 0 {
		return errors.New("payroll: period id required")
	}
	if !in.Target.Valid() {
		return ErrInvalidTransition
	}
	if in.ActorID == 0 {
		return errors.New("payroll: actor required")
	}
	return nil
}

// Sentinel errors for the payroll core. All failures surface synchronously as
// one of these kinds, wrapped with context where useful.
var (
	ErrDuplicatePeriod   = errors.New("payroll: period already exists for tenant and month")
	ErrPeriodNotFound    = errors.New("payroll: period not found")
	ErrEmployeeNotFound  = errors.New("payroll: employee not found")
	ErrEntryNotFound     = errors.New("payroll: entry not found")
	ErrPeriodNotEditable = errors.New("payroll: period status forbids entry mutation")
	ErrInvalidTransition = errors.New("payroll: invalid status transition")
	ErrPermissionDenied  = errors.New("payroll: permission denied")
	ErrAggregation       = errors.New("payroll: aggregation failed")
)
