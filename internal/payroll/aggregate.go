package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-payroll/internal/identity"
)

// Rates carries the externally configured payroll policy amounts. The
// aggregator never derives these; they come from configuration.
type Rates struct {
	// OvertimeHourly is added to gross per overtime hour.
	OvertimeHourly decimal.Decimal
	// AbsenceDaily is deducted from gross per uncredited absence day.
	AbsenceDaily decimal.Decimal
	// TardinessDaily is deducted from gross per tardiness day.
	TardinessDaily decimal.Decimal
	// EmployerBurden is the employer-cost rate applied on top of gross,
	// expressed as a fraction (0.08 means 8%).
	EmployerBurden decimal.Decimal
}

// Aggregate computes the period totals and per-employee results from the
// entry set and the externally supplied base amounts. It is a pure function:
// identical inputs yield byte-identical decimals, which is what makes
// recalculation idempotent.
//
// Per employee, gross is the base gross plus overtime, minus absence and
// tardiness deductions, clamped at zero. Credited absences offset absence
// days before the deduction applies. Rounding happens once, on the period
// totals, using banker's rounding; per-employee amounts stay unrounded so
// repeated aggregation cannot drift.
func Aggregate(entries []Entry, base map[int64]identity.BaseAmount, rates Rates) (Totals, []Result, error) {
	gross := decimal.Zero
	taxA := decimal.Zero
	taxB := decimal.Zero
	results := make([]Result, 0, len(entries))

	for _, e := range entries {
		b, ok := base[e.EmployeeID]
		if !ok {
			return Totals{}, nil, fmt.Errorf("%w: no base amount for employee %d", ErrAggregation, e.EmployeeID)
		}

		employeeGross := b.Gross.
			Add(orZero(e.OvertimeHours).Mul(rates.OvertimeHourly)).
			Sub(uncreditedAbsences(e).Mul(rates.AbsenceDaily)).
			Sub(orZero(e.Tardiness).Mul(rates.TardinessDaily))
		if employeeGross.IsNegative() {
			employeeGross = decimal.Zero
		}

		gross = gross.Add(employeeGross)
		taxA = taxA.Add(b.TaxA)
		taxB = taxB.Add(b.TaxB)

		results = append(results, Result{
			PeriodID:   e.PeriodID,
			EmployeeID: e.EmployeeID,
			Gross:      employeeGross,
			TaxA:       b.TaxA,
			TaxB:       b.TaxB,
			Net:        employeeGross.Sub(b.TaxA).Sub(b.TaxB),
		})
	}

	totals := Totals{
		Gross: gross.RoundBank(2),
		TaxA:  taxA.RoundBank(2),
		TaxB:  taxB.RoundBank(2),
	}
	totals.Net = totals.Gross.Sub(totals.TaxA).Sub(totals.TaxB)
	totals.EmployerCost = gross.Add(gross.Mul(rates.EmployerBurden)).RoundBank(2)
	return totals, results, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func uncreditedAbsences(e Entry) decimal.Decimal {
	days := orZero(e.Absences).Sub(orZero(e.CreditedAbsences))
	if days.IsNegative() {
		return decimal.Zero
	}
	return days
}
