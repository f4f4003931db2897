package identity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Employee is a read-only projection of the externally owned identity store.
// The payroll core references employees but never creates or deletes them.
type Employee struct {
	ID        int64
	TenantID  int64
	FullName  string
	Active    bool
	HiredAt   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseAmount carries the externally supplied monetary inputs for one employee:
// the base gross for the reference month and the two withholding amounts.
type BaseAmount struct {
	Gross decimal.Decimal
	TaxA  decimal.Decimal
	TaxB  decimal.Decimal
}

// ErrEmployeeNotFound indicates the employee reference cannot be resolved.
var ErrEmployeeNotFound = errors.New("identity: employee not found")
