package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atlas-erp/atlas-payroll/internal/identity"
)

func testRates() Rates {
	return Rates{
		OvertimeHourly: decimal.NewFromInt(50),
		AbsenceDaily:   decimal.RequireFromString("93.33"),
		TardinessDaily: decimal.RequireFromString("93.33"),
		EmployerBurden: decimal.RequireFromString("0.08"),
	}
}

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestAggregateTwoEmployees(t *testing.T) {
	entries := []Entry{
		{PeriodID: 1, EmployeeID: 101, OvertimeHours: nd("10")},
		{PeriodID: 1, EmployeeID: 102, Absences: nd("2")},
	}
	base := map[int64]identity.BaseAmount{
		101: {Gross: decimal.NewFromInt(3000), TaxA: decimal.NewFromInt(300), TaxB: decimal.NewFromInt(150)},
		102: {Gross: decimal.NewFromInt(2800), TaxA: decimal.NewFromInt(280), TaxB: decimal.NewFromInt(140)},
	}

	totals, results, err := Aggregate(entries, base, testRates())
	require.NoError(t, err)

	// 3000 + 10*50 = 3500; 2800 - 2*93.33 = 2613.34
	require.Equal(t, "6113.34", totals.Gross.String())
	require.Equal(t, "580", totals.TaxA.String())
	require.Equal(t, "290", totals.TaxB.String())
	require.Equal(t, "5243.34", totals.Net.String())
	require.Equal(t, "6602.41", totals.EmployerCost.String())

	require.Len(t, results, 2)
	require.Equal(t, "3500", results[0].Gross.String())
	require.Equal(t, "2613.34", results[1].Gross.String())
	require.Equal(t, "3050", results[0].Net.String())
	require.Equal(t, "2193.34", results[1].Net.String())
}

func TestAggregateDeterministic(t *testing.T) {
	entries := []Entry{
		{PeriodID: 1, EmployeeID: 101, OvertimeHours: nd("7.5"), Tardiness: nd("1")},
		{PeriodID: 1, EmployeeID: 102, Absences: nd("3"), CreditedAbsences: nd("1")},
	}
	base := map[int64]identity.BaseAmount{
		101: {Gross: decimal.RequireFromString("3333.33"), TaxA: decimal.NewFromInt(333), TaxB: decimal.NewFromInt(100)},
		102: {Gross: decimal.RequireFromString("2666.67"), TaxA: decimal.NewFromInt(266), TaxB: decimal.NewFromInt(80)},
	}

	first, firstResults, err := Aggregate(entries, base, testRates())
	require.NoError(t, err)
	second, secondResults, err := Aggregate(entries, base, testRates())
	require.NoError(t, err)

	require.True(t, first.Equal(second))
	require.Equal(t, len(firstResults), len(secondResults))
	for i := range firstResults {
		require.Equal(t, firstResults[i].Gross.String(), secondResults[i].Gross.String())
		require.Equal(t, firstResults[i].Net.String(), secondResults[i].Net.String())
	}
}

func TestAggregateClampsNegativeGross(t *testing.T) {
	entries := []Entry{
		{PeriodID: 1, EmployeeID: 101, Absences: nd("5")},
	}
	base := map[int64]identity.BaseAmount{
		101: {Gross: decimal.NewFromInt(100), TaxA: decimal.Zero, TaxB: decimal.Zero},
	}

	totals, results, err := Aggregate(entries, base, testRates())
	require.NoError(t, err)
	require.True(t, totals.Gross.IsZero())
	require.True(t, results[0].Gross.IsZero())
}

func TestAggregateCreditedAbsencesOffset(t *testing.T) {
	base := map[int64]identity.BaseAmount{
		101: {Gross: decimal.NewFromInt(2800), TaxA: decimal.Zero, TaxB: decimal.Zero},
	}

	fullyCredited := []Entry{{PeriodID: 1, EmployeeID: 101, Absences: nd("2"), CreditedAbsences: nd("2")}}
	totals, _, err := Aggregate(fullyCredited, base, testRates())
	require.NoError(t, err)
	require.Equal(t, "2800", totals.Gross.String())

	// Credits beyond the absence count never add to gross.
	overCredited := []Entry{{PeriodID: 1, EmployeeID: 101, Absences: nd("1"), CreditedAbsences: nd("4")}}
	totals, _, err = Aggregate(overCredited, base, testRates())
	require.NoError(t, err)
	require.Equal(t, "2800", totals.Gross.String())
}

func TestAggregateMissingBaseAmount(t *testing.T) {
	entries := []Entry{
		{PeriodID: 1, EmployeeID: 101},
		{PeriodID: 1, EmployeeID: 999},
	}
	base := map[int64]identity.BaseAmount{
		101: {Gross: decimal.NewFromInt(3000)},
	}

	_, _, err := Aggregate(entries, base, testRates())
	require.ErrorIs(t, err, ErrAggregation)
	require.Contains(t, err.Error(), "999")
}

func TestAggregateEmptyEntries(t *testing.T) {
	totals, results, err := Aggregate(nil, nil, testRates())
	require.NoError(t, err)
	require.True(t, totals.IsZero())
	require.Empty(t, results)
}

func TestAggregateRoundsTotalsOnly(t *testing.T) {
	// Each gross carries a third; the sum rounds once at the end rather than
	// accumulating per-employee rounding error.
	entries := []Entry{
		{PeriodID: 1, EmployeeID: 101},
		{PeriodID: 1, EmployeeID: 102},
		{PeriodID: 1, EmployeeID: 103},
	}
	third := decimal.NewFromInt(1000).Div(decimal.NewFromInt(3))
	base := map[int64]identity.BaseAmount{
		101: {Gross: third},
		102: {Gross: third},
		103: {Gross: third},
	}

	totals, results, err := Aggregate(entries, base, testRates())
	require.NoError(t, err)
	require.Equal(t, "1000", totals.Gross.String())
	for _, res := range results {
		require.True(t, res.Gross.Equal(third))
	}
}
