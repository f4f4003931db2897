package identity

import "context"

// Service exposes employee lookups to the payroll core.
type Service struct {
	repo Repository
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetEmployee resolves an employee reference within a tenant.
func (s *Service) GetEmployee(ctx context.Context, tenantID, employeeID int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, tenantID, employeeID)
}

// BaseAmounts returns compensation inputs for the given employees.
func (s *Service) BaseAmounts(ctx context.Context, tenantID int64, employeeIDs []int64) (map[int64]BaseAmount, error) {
	return s.repo.BaseAmounts(ctx, tenantID, employeeIDs)
}
