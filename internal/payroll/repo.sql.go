package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-erp/atlas-payroll/internal/platform/db"
)

// pgRepository persists period aggregates in PostgreSQL. A partial unique
// index on (tenant_id, ref_month, ref_year) WHERE retired_at IS NULL enforces
// the one-active-period invariant; unique violations map to ErrDuplicatePeriod.
type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const uniqueViolation = "23505"

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("payroll: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const periodColumns = `id, reference, tenant_id, ref_month, ref_year, status, notes,
gross, net, tax_a, tax_b, employer_cost,
created_by, created_at, updated_by, updated_at,
locked_by, locked_at, calculated_at, approved_by, approved_at, paid_by, paid_at, retired_at`

func (r *pgRepository) GetPeriod(ctx context.Context, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM payroll_periods WHERE id=$1`, id)
	return scanPeriod(row)
}

func (r *pgRepository) GetPeriodWithEntries(ctx context.Context, id int64) (Period, error) {
	period, err := r.GetPeriod(ctx, id)
	if err != nil {
		return Period{}, err
	}
	entries, err := r.ListEntries(ctx, id)
	if err != nil {
		return Period{}, err
	}
	period.Entries = entries
	return period, nil
}

func (r *pgRepository) ListPeriods(ctx context.Context, tenantID int64, limit, offset int) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM payroll_periods
WHERE tenant_id=$1 AND retired_at IS NULL
ORDER BY ref_year DESC, ref_month DESC
LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *pgRepository) CountPeriods(ctx context.Context, tenantID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_periods WHERE tenant_id=$1 AND retired_at IS NULL`, tenantID).Scan(&total)
	return total, err
}

func (r *pgRepository) ListEntries(ctx context.Context, periodID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, listEntriesSQL, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *pgRepository) ListCalculatedPeriodIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM payroll_periods WHERE status=$1 AND retired_at IS NULL ORDER BY id`, string(StatusCalculated))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// pgTxRepository wraps a pgx transaction with the mutation surface.
type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) InsertPeriod(ctx context.Context, in CreatePeriodInput, ref uuid.UUID, now time.Time) (Period, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payroll_periods
(reference, tenant_id, ref_month, ref_year, status, notes,
 gross, net, tax_a, tax_b, employer_cost,
 created_by, created_at, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, 0, $7, $8, $7, $8)
RETURNING `+periodColumns, ref, in.TenantID, in.Month, in.Year, string(StatusDraft), in.Notes, in.ActorID, now)
	p, err := scanPeriod(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Period{}, ErrDuplicatePeriod
		}
		return Period{}, err
	}
	return p, nil
}

func (r *pgTxRepository) GetPeriodForUpdate(ctx context.Context, id int64) (Period, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM payroll_periods WHERE id=$1 FOR UPDATE`, id)
	return scanPeriod(row)
}

func (r *pgTxRepository) UpdatePeriod(ctx context.Context, p Period) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payroll_periods SET
status=$2, notes=$3,
gross=$4, net=$5, tax_a=$6, tax_b=$7, employer_cost=$8,
updated_by=$9, updated_at=$10,
locked_by=$11, locked_at=$12, calculated_at=$13,
approved_by=$14, approved_at=$15, paid_by=$16, paid_at=$17
WHERE id=$1`,
		p.ID, string(p.Status), p.Notes,
		p.Totals.Gross, p.Totals.Net, p.Totals.TaxA, p.Totals.TaxB, p.Totals.EmployerCost,
		p.Updated.ActorID, p.Updated.At,
		stampActor(p.Locked), stampTime(p.Locked), p.CalculatedAt,
		stampActor(p.Approved), stampTime(p.Approved), stampActor(p.Paid), stampTime(p.Paid))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *pgTxRepository) RetirePeriod(ctx context.Context, id int64, actorID int64, now time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE payroll_periods SET retired_at=$2, updated_by=$3, updated_at=$2
WHERE id=$1 AND retired_at IS NULL`, id, now, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

const listEntriesSQL = `SELECT e.id, e.period_id, e.employee_id, emp.full_name,
e.absences, e.credited_absences, e.overtime_hours, e.tardiness, e.note,
e.created_by, e.created_at, e.updated_by, e.updated_at
FROM payroll_entries e
JOIN employees emp ON emp.id = e.employee_id
WHERE e.period_id = $1
ORDER BY emp.full_name, e.employee_id`

func (r *pgTxRepository) ListEntries(ctx context.Context, periodID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, listEntriesSQL, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *pgTxRepository) GetEntry(ctx context.Context, periodID, employeeID int64) (Entry, error) {
	row := r.tx.QueryRow(ctx, `SELECT e.id, e.period_id, e.employee_id, emp.full_name,
e.absences, e.credited_absences, e.overtime_hours, e.tardiness, e.note,
e.created_by, e.created_at, e.updated_by, e.updated_at
FROM payroll_entries e
JOIN employees emp ON emp.id = e.employee_id
WHERE e.period_id=$1 AND e.employee_id=$2`, periodID, employeeID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *pgTxRepository) UpsertEntry(ctx context.Context, in UpsertEntryInput, now time.Time) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payroll_entries
(period_id, employee_id, absences, credited_absences, overtime_hours, tardiness, note,
 created_by, created_at, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $8, $9)
ON CONFLICT (period_id, employee_id) DO UPDATE SET
absences=EXCLUDED.absences,
credited_absences=EXCLUDED.credited_absences,
overtime_hours=EXCLUDED.overtime_hours,
tardiness=EXCLUDED.tardiness,
note=EXCLUDED.note,
updated_by=EXCLUDED.updated_by,
updated_at=EXCLUDED.updated_at
RETURNING id, period_id, employee_id,
absences, credited_absences, overtime_hours, tardiness, note,
created_by, created_at, updated_by, updated_at`,
		in.PeriodID, in.EmployeeID,
		in.Fields.Absences, in.Fields.CreditedAbsences, in.Fields.OvertimeHours, in.Fields.Tardiness,
		in.Fields.Note, in.ActorID, now)

	var e Entry
	err := row.Scan(&e.ID, &e.PeriodID, &e.EmployeeID,
		&e.Absences, &e.CreditedAbsences, &e.OvertimeHours, &e.Tardiness, &e.Note,
		&e.Created.ActorID, &e.Created.At, &e.Updated.ActorID, &e.Updated.At)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (r *pgTxRepository) DeleteEntry(ctx context.Context, periodID, employeeID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM payroll_entries WHERE period_id=$1 AND employee_id=$2`, periodID, employeeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// ReplaceResults swaps the per-employee breakdown for the period in one shot.
func (r *pgTxRepository) ReplaceResults(ctx context.Context, periodID int64, results []Result, now time.Time) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM payroll_results WHERE period_id=$1`, periodID); err != nil {
		return err
	}
	for _, res := range results {
		_, err := r.tx.Exec(ctx, `INSERT INTO payroll_results
(period_id, employee_id, gross, tax_a, tax_b, net, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			periodID, res.EmployeeID, res.Gross, res.TaxA, res.TaxB, res.Net, now)
		if err != nil {
			return err
		}
	}
	return nil
}

// Scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row rowScanner) (Period, error) {
	var p Period
	var lockedBy, approvedBy, paidBy *int64
	var lockedAt, approvedAt, paidAt *time.Time
	var status string
	err := row.Scan(&p.ID, &p.Reference, &p.TenantID, &p.Month, &p.Year, &status, &p.Notes,
		&p.Totals.Gross, &p.Totals.Net, &p.Totals.TaxA, &p.Totals.TaxB, &p.Totals.EmployerCost,
		&p.Created.ActorID, &p.Created.At, &p.Updated.ActorID, &p.Updated.At,
		&lockedBy, &lockedAt, &p.CalculatedAt, &approvedBy, &approvedAt, &paidBy, &paidAt, &p.RetiredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrPeriodNotFound
		}
		return Period{}, err
	}
	p.Status = PeriodStatus(status)
	p.Locked = toStamp(lockedBy, lockedAt)
	p.Approved = toStamp(approvedBy, approvedAt)
	p.Paid = toStamp(paidBy, paidAt)
	return p, nil
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PeriodID, &e.EmployeeID, &e.EmployeeName,
		&e.Absences, &e.CreditedAbsences, &e.OvertimeHours, &e.Tardiness, &e.Note,
		&e.Created.ActorID, &e.Created.At, &e.Updated.ActorID, &e.Updated.At)
	return e, err
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func toStamp(actor *int64, at *time.Time) *AuditStamp {
	if actor == nil || at == nil {
		return nil
	}
	return &AuditStamp{ActorID: *actor, At: *at}
}

func stampActor(s *AuditStamp) *int64 {
	if s == nil {
		return nil
	}
	return &s.ActorID
}

func stampTime(s *AuditStamp) *time.Time {
	if s == nil {
		return nil
	}
	return &s.At
}
