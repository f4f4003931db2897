package payroll

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence collaborator for period aggregates. Reads
// outside a transaction observe committed state only; every mutation runs
// through WithTx so a transition commits status, stamps, totals and results
// atomically or not at all.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetPeriod(ctx context.Context, id int64) (Period, error)
	GetPeriodWithEntries(ctx context.Context, id int64) (Period, error)
	ListPeriods(ctx context.Context, tenantID int64, limit, offset int) ([]Period, error)
	CountPeriods(ctx context.Context, tenantID int64) (int, error)
	ListEntries(ctx context.Context, periodID int64) ([]Entry, error)
	ListCalculatedPeriodIDs(ctx context.Context) ([]int64, error)
}

// TxRepository exposes the mutations available inside a transaction.
type TxRepository interface {
	InsertPeriod(ctx context.Context, in CreatePeriodInput, ref uuid.UUID, now time.Time) (Period, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (Period, error)
	UpdatePeriod(ctx context.Context, p Period) error
	RetirePeriod(ctx context.Context, id int64, actorID int64, now time.Time) error

	ListEntries(ctx context.Context, periodID int64) ([]Entry, error)
	GetEntry(ctx context.Context, periodID, employeeID int64) (Entry, error)
	UpsertEntry(ctx context.Context, in UpsertEntryInput, now time.Time) (Entry, error)
	DeleteEntry(ctx context.Context, periodID, employeeID int64) error

	ReplaceResults(ctx context.Context, periodID int64, results []Result, now time.Time) error
}
