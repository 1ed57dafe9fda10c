// Package output renders the analytical datasets as flat CSV artifacts and
// hands them to a Sink.
package output

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"finanze/internal/core"
)

// Artifact names.
const (
	MonthlySummaryFile   = "monthly_summary.csv"
	ExpenseBreakdownFile = "expense_breakdown.csv"
	IncomeBreakdownFile  = "income_breakdown.csv"
	ExpenseMonthlyFile   = "expense_monthly_breakdown.csv"
	IncomeMonthlyFile    = "income_monthly_breakdown.csv"
	SavingsMetricsFile   = "savings_metrics.csv"
	SavingsTotalsFile    = "savings_totals.csv"
	ExpensesFile         = "expenses.csv"
	IncomeFile           = "income.csv"
	SavingsFile          = "savings.csv"
	RejectionsFile       = "rejections.json"
)

// Dataset is everything a run publishes.
type Dataset struct {
	Monthly          []core.MonthlySummary
	ExpenseBreakdown []core.CategoryAmount
	IncomeBreakdown  []core.CategoryAmount
	ExpenseMonthly   []core.MonthlyCategoryAmount
	IncomeMonthly    []core.MonthlyCategoryAmount
	Savings          []core.SavingsMetric
	SavingsTotals    []core.SavingsTotal
	Expenses         []core.Transaction
	Income           []core.Transaction
	SavingsRecords   []core.Transaction
}

func MonthlySummaryCSV(rows []core.MonthlySummary) ([]byte, error) {
	return writeCSV([]string{"year", "month", "income", "expense", "balance"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Month),
			r.Income.String(),
			r.Expense.String(),
			r.Balance.String(),
		}
	})
}

func BreakdownCSV(rows []core.CategoryAmount) ([]byte, error) {
	return writeCSV([]string{"category", "total"}, len(rows), func(i int) []string {
		return []string{rows[i].Name, rows[i].Amount.String()}
	})
}

func MonthlyBreakdownCSV(rows []core.MonthlyCategoryAmount) ([]byte, error) {
	return writeCSV([]string{"month", "category", "total"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{core.MonthKey{Year: r.Year, Month: r.Month}.String(), r.Category, r.Amount.String()}
	})
}

func SavingsTotalsCSV(rows []core.SavingsTotal) ([]byte, error) {
	return writeCSV([]string{"month", "allocated", "spent", "balance"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			core.MonthKey{Year: r.Year, Month: r.Month}.String(),
			r.Allocated.String(),
			r.Spent.String(),
			r.Balance.String(),
		}
	})
}

func SavingsMetricsCSV(rows []core.SavingsMetric) ([]byte, error) {
	return writeCSV([]string{"month", "category", "allocated", "spent", "balance"}, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			core.MonthKey{Year: r.Year, Month: r.Month}.String(),
			r.Category,
			r.Allocated.String(),
			r.Spent.String(),
			r.Balance.String(),
		}
	})
}

// TransactionsCSV writes processed records. Savings tables carry the extra
// category_type column.
func TransactionsCSV(kind core.Kind, txs []core.Transaction) ([]byte, error) {
	header := []string{"date", "description", "category", "amount"}
	if kind == core.KindSavings {
		header = []string{"date", "description", "category", "category_type", "amount"}
	}
	return writeCSV(header, len(txs), func(i int) []string {
		tx := txs[i]
		if kind == core.KindSavings {
			return []string{tx.Date.ISO(), tx.Description, tx.Category, string(tx.CategoryType), tx.Amount.String()}
		}
		return []string{tx.Date.ISO(), tx.Description, tx.Category, tx.Amount.String()}
	})
}

func writeCSV(header []string, n int, row func(i int) []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
