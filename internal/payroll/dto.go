package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type createPeriodRequest struct {
	TenantID int64  `json:"tenant_id" validate:"required"`
	Month    int    `json:"month" validate:"required,min=1,max=12"`
	Year     int    `json:"year" validate:"required,min=2000,max=2200"`
	Notes    string `json:"notes" validate:"max=2000"`
}

type transitionRequest struct {
	Target string `json:"target" validate:"required,oneof=DRAFT LOCKED CALCULATED APPROVED PAID"`
}

type upsertEntryRequest struct {
	Absences         *decimal.Decimal `json:"absences"`
	CreditedAbsences *decimal.Decimal `json:"credited_absences"`
	OvertimeHours    *decimal.Decimal `json:"overtime_hours"`
	Tardiness        *decimal.Decimal `json:"tardiness"`
	Note             string           `json:"note" validate:"max=2000"`
}

func (r upsertEntryRequest) fields() EntryFields {
	return EntryFields{
		Absences:         toNullDecimal(r.Absences),
		CreditedAbsences: toNullDecimal(r.CreditedAbsences),
		OvertimeHours:    toNullDecimal(r.OvertimeHours),
		Tardiness:        toNullDecimal(r.Tardiness),
		Note:             r.Note,
	}
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

type periodResponse struct {
	ID           int64           `json:"id"`
	Reference    string          `json:"reference"`
	TenantID     int64           `json:"tenant_id"`
	Month        int             `json:"month"`
	Year         int             `json:"year"`
	Status       PeriodStatus    `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	Totals       Totals          `json:"totals"`
	Created      AuditStamp      `json:"created"`
	Updated      AuditStamp      `json:"updated"`
	Locked       *AuditStamp     `json:"locked,omitempty"`
	CalculatedAt *time.Time      `json:"calculated_at,omitempty"`
	Approved     *AuditStamp     `json:"approved,omitempty"`
	Paid         *AuditStamp     `json:"paid,omitempty"`
	Entries      []entryResponse `json:"entries,omitempty"`
}

type entryResponse struct {
	ID               int64               `json:"id"`
	PeriodID         int64               `json:"period_id"`
	EmployeeID       int64               `json:"employee_id"`
	EmployeeName     string              `json:"employee_name,omitempty"`
	Absences         decimal.NullDecimal `json:"absences"`
	CreditedAbsences decimal.NullDecimal `json:"credited_absences"`
	OvertimeHours    decimal.NullDecimal `json:"overtime_hours"`
	Tardiness        decimal.NullDecimal `json:"tardiness"`
	Note             string              `json:"note,omitempty"`
	Created          AuditStamp          `json:"created"`
	Updated          AuditStamp          `json:"updated"`
}

type periodListResponse struct {
	Periods    []periodResponse `json:"periods"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

func toPeriodResponse(p Period) periodResponse {
	resp := periodResponse{
		ID:           p.ID,
		Reference:    p.Reference.String(),
		TenantID:     p.TenantID,
		Month:        p.Month,
		Year:         p.Year,
		Status:       p.Status,
		Notes:        p.Notes,
		Totals:       p.Totals,
		Created:      p.Created,
		Updated:      p.Updated,
		Locked:       p.Locked,
		CalculatedAt: p.CalculatedAt,
		Approved:     p.Approved,
		Paid:         p.Paid,
	}
	for _, e := range p.Entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	return resp
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:               e.ID,
		PeriodID:         e.PeriodID,
		EmployeeID:       e.EmployeeID,
		EmployeeName:     e.EmployeeName,
		Absences:         e.Absences,
		CreditedAbsences: e.CreditedAbsences,
		OvertimeHours:    e.OvertimeHours,
		Tardiness:        e.Tardiness,
		Note:             e.Note,
		Created:          e.Created,
		Updated:          e.Updated,
	}
}
