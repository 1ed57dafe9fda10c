package output

import (
	"bytes"
	"context"
	"fmt"

	"finanze/internal/core"
	"finanze/internal/report"
)

type artifact struct {
	name  string
	build func() ([]byte, error)
}

// Publish renders the run artifacts and stores them through sink in a fixed
// order. It returns the names written.
func Publish(ctx context.Context, sink Sink, ds Dataset, rep report.Report) ([]string, error) {
	var written []string
	for _, a := range artifacts(ds, rep) {
		data, err := a.build()
		if err != nil {
			return written, fmt.Errorf("render %s: %w", a.name, err)
		}
		if err := sink.Put(ctx, a.name, data); err != nil {
			return written, fmt.Errorf("store %s: %w", a.name, err)
		}
		written = append(written, a.name)
	}
	return written, nil
}

func artifacts(ds Dataset, rep report.Report) []artifact {
	return []artifact{
		{MonthlySummaryFile, func() ([]byte, error) { return MonthlySummaryCSV(ds.Monthly) }},
		{ExpenseBreakdownFile, func() ([]byte, error) { return BreakdownCSV(ds.ExpenseBreakdown) }},
		{IncomeBreakdownFile, func() ([]byte, error) { return BreakdownCSV(ds.IncomeBreakdown) }},
		{ExpenseMonthlyFile, func() ([]byte, error) { return MonthlyBreakdownCSV(ds.ExpenseMonthly) }},
		{IncomeMonthlyFile, func() ([]byte, error) { return MonthlyBreakdownCSV(ds.IncomeMonthly) }},
		{SavingsMetricsFile, func() ([]byte, error) { return SavingsMetricsCSV(ds.Savings) }},
		{SavingsTotalsFile, func() ([]byte, error) { return SavingsTotalsCSV(ds.SavingsTotals) }},
		{ExpensesFile, func() ([]byte, error) { return TransactionsCSV(core.KindExpense, ds.Expenses) }},
		{IncomeFile, func() ([]byte, error) { return TransactionsCSV(core.KindIncome, ds.Income) }},
		{SavingsFile, func() ([]byte, error) { return TransactionsCSV(core.KindSavings, ds.SavingsRecords) }},
		{RejectionsFile, func() ([]byte, error) {
			var buf bytes.Buffer
			if err := rep.WriteJSON(&buf); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}},
	}
}
