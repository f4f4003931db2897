package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads employee records and compensation inputs.
type Repository interface {
	GetEmployee(ctx context.Context, tenantID, employeeID int64) (Employee, error)
	BaseAmounts(ctx context.Context, tenantID int64, employeeIDs []int64) (map[int64]BaseAmount, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetEmployee(ctx context.Context, tenantID, employeeID int64) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, full_name, active, hired_at, created_at, updated_at
FROM employees WHERE id=$1 AND tenant_id=$2`, employeeID, tenantID).
		Scan(&e.ID, &e.TenantID, &e.FullName, &e.Active, &e.HiredAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

// BaseAmounts loads compensation inputs for the given employees. Employees
// without a compensation row are simply absent from the result; the caller
// decides whether that is an error.
func (r *repository) BaseAmounts(ctx context.Context, tenantID int64, employeeIDs []int64) (map[int64]BaseAmount, error) {
	if len(employeeIDs) == 0 {
		return map[int64]BaseAmount{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT employee_id, base_gross, tax_withholding_a, tax_withholding_b
FROM employee_compensation WHERE tenant_id=$1 AND employee_id = ANY($2)`, tenantID, employeeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	amounts := make(map[int64]BaseAmount, len(employeeIDs))
	for rows.Next() {
		var id int64
		var gross, taxA, taxB decimal.Decimal
		if err := rows.Scan(&id, &gross, &taxA, &taxB); err != nil {
			return nil, err
		}
		amounts[id] = BaseAmount{Gross: gross, TaxA: taxA, TaxB: taxB}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return amounts, nil
}
