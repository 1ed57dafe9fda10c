package core

import "fmt"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// MonthlySummary is the income/expense picture of one calendar month.
// Expense is a positive magnitude; Balance = Income - Expense.
type MonthlySummary struct {
	Year    int
	Month   int // 1-12
	Income  Money
	Expense Money
	Balance Money
}

// SavingsMetric tracks one savings category in one month.
// Balance is the running total of Allocated+Spent up to and including this month.
type SavingsMetric struct {
	Year      int
	Month     int
	Category  string
	Allocated Money
	Spent     Money
	Balance   Money
}

// MonthlyCategoryAmount is the total of one category in one month.
type MonthlyCategoryAmount struct {
	Year     int
	Month    int
	Category string
	Amount   Money
}

// SavingsTotal sums every savings category in one month. Balance is the
// overall savings held at the end of the month.
type SavingsTotal struct {
	Year      int
	Month     int
	Allocated Money
	Spent     Money
	Balance   Money
}

// MonthKey is a (year, month) pair that sorts chronologically.
type MonthKey struct {
	Year  int
	Month int
}

func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Month()}
}

func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// String formats the key as YYYY-MM.
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}
