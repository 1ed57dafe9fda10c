// Package aggregate derives the analytical tables from validated transactions.
//
// Every function is pure: it never mutates its input, handles empty input,
// and returns the same result for any permutation of the input.
package aggregate

import (
	"sort"
	"strings"

	"finanze/internal/core"
)

// Standardize returns a copy of txs with sign conventions applied: expenses
// negative, income positive, savings untouched. Text fields are trimmed.
func Standardize(txs []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	for i, tx := range txs {
		tx.Description = strings.TrimSpace(tx.Description)
		tx.Category = strings.TrimSpace(tx.Category)
		switch tx.Kind {
		case core.KindExpense:
			tx.Amount = tx.Amount.Abs().Neg()
		case core.KindIncome:
			tx.Amount = tx.Amount.Abs()
		}
		out[i] = tx
	}
	return out
}

// MonthlySummary totals income and expense per month, ascending. Magnitudes are
// used so the result does not depend on whether the input was standardized.
func MonthlySummary(expenses, income []core.Transaction) []core.MonthlySummary {
	type totals struct{ income, expense core.Money }
	byMonth := map[core.MonthKey]*totals{}
	get := func(k core.MonthKey) *totals {
		t, ok := byMonth[k]
		if !ok {
			t = &totals{}
			byMonth[k] = t
		}
		return t
	}
	for _, tx := range expenses {
		t := get(core.MonthOf(tx.Date))
		t.expense = t.expense.Add(tx.Amount.Abs())
	}
	for _, tx := range income {
		t := get(core.MonthOf(tx.Date))
		t.income = t.income.Add(tx.Amount.Abs())
	}

	out := make([]core.MonthlySummary, 0, len(byMonth))
	for _, k := range sortedMonths(byMonth) {
		t := byMonth[k]
		out = append(out, core.MonthlySummary{
			Year:    k.Year,
			Month:   k.Month,
			Income:  t.income,
			Expense: t.expense,
			Balance: t.income.Sub(t.expense),
		})
	}
	return out
}

// CategoryBreakdown sums amounts per category for transactions inside period.
// Only categories with at least one transaction in the period appear.
func CategoryBreakdown(txs []core.Transaction, period core.Period) map[string]core.Money {
	out := map[string]core.Money{}
	for _, tx := range txs {
		if !period.Contains(tx.Date) {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// SortedBreakdown flattens a breakdown into rows ordered by category name.
func SortedBreakdown(m map[string]core.Money) []core.CategoryAmount {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]core.CategoryAmount, 0, len(names))
	for _, name := range names {
		out = append(out, core.CategoryAmount{Name: name, Amount: m[name]})
	}
	return out
}

// MonthlyCategoryBreakdown sums amounts per (month, category) for transactions
// inside period, ordered by month then category.
func MonthlyCategoryBreakdown(txs []core.Transaction, period core.Period) []core.MonthlyCategoryAmount {
	type key struct {
		month    core.MonthKey
		category string
	}
	sums := map[key]core.Money{}
	for _, tx := range txs {
		if !period.Contains(tx.Date) {
			continue
		}
		k := key{month: core.MonthOf(tx.Date), category: tx.Category}
		sums[k] = sums[k].Add(tx.Amount)
	}

	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].month != keys[j].month {
			return keys[i].month.Before(keys[j].month)
		}
		return keys[i].category < keys[j].category
	})

	out := make([]core.MonthlyCategoryAmount, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.MonthlyCategoryAmount{
			Year:     k.month.Year,
			Month:    k.month.Month,
			Category: k.category,
			Amount:   sums[k],
		})
	}
	return out
}

// SavingsMetrics groups savings by month and category. Allocation amounts go to
// Allocated, saving amounts to Spent, and Balance carries the running total per
// category across months. Rows are ordered by month then category; a category
// only has rows in months where it had activity.
func SavingsMetrics(savings []core.Transaction) []core.SavingsMetric {
	type key struct {
		month    core.MonthKey
		category string
	}
	type cell struct{ allocated, spent core.Money }
	cells := map[key]*cell{}
	for _, tx := range savings {
		k := key{month: core.MonthOf(tx.Date), category: tx.Category}
		c, ok := cells[k]
		if !ok {
			c = &cell{}
			cells[k] = c
		}
		switch tx.CategoryType {
		case core.Allocation:
			c.allocated = c.allocated.Add(tx.Amount)
		case core.Saving:
			c.spent = c.spent.Add(tx.Amount)
		}
	}

	keys := make([]key, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].month != keys[j].month {
			return keys[i].month.Before(keys[j].month)
		}
		return keys[i].category < keys[j].category
	})

	running := map[string]core.Money{}
	out := make([]core.SavingsMetric, 0, len(keys))
	for _, k := range keys {
		c := cells[k]
		bal := running[k.category].Add(c.allocated).Add(c.spent)
		running[k.category] = bal
		out = append(out, core.SavingsMetric{
			Year:      k.month.Year,
			Month:     k.month.Month,
			Category:  k.category,
			Allocated: c.allocated,
			Spent:     c.spent,
			Balance:   bal,
		})
	}
	return out
}

// SavingsTotals sums savings across categories per month. Balance runs over
// all months with activity.
func SavingsTotals(savings []core.Transaction) []core.SavingsTotal {
	type cell struct{ allocated, spent core.Money }
	byMonth := map[core.MonthKey]*cell{}
	for _, tx := range savings {
		k := core.MonthOf(tx.Date)
		c, ok := byMonth[k]
		if !ok {
			c = &cell{}
			byMonth[k] = c
		}
		switch tx.CategoryType {
		case core.Allocation:
			c.allocated = c.allocated.Add(tx.Amount)
		case core.Saving:
			c.spent = c.spent.Add(tx.Amount)
		}
	}

	var balance core.Money
	out := make([]core.SavingsTotal, 0, len(byMonth))
	for _, k := range sortedMonths(byMonth) {
		c := byMonth[k]
		balance = balance.Add(c.allocated).Add(c.spent)
		out = append(out, core.SavingsTotal{
			Year:      k.Year,
			Month:     k.Month,
			Allocated: c.allocated,
			Spent:     c.spent,
			Balance:   balance,
		})
	}
	return out
}

func sortedMonths[V any](m map[core.MonthKey]V) []core.MonthKey {
	keys := make([]core.MonthKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}
