package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanze/internal/core"
)

func tx(kind core.Kind, y, m, d int, category string, cents int64) core.Transaction {
	return core.Transaction{
		Kind:     kind,
		Date:     core.NewDate(y, m, d),
		Category: category,
		Amount:   core.Money{Cents: cents},
	}
}

func saving(y, m, d int, category string, ct core.CategoryType, cents int64) core.Transaction {
	t := tx(core.KindSavings, y, m, d, category, cents)
	t.CategoryType = ct
	return t
}

func shuffled[T any](in []T, seed int64) []T {
	out := append([]T(nil), in...)
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestStandardizeSigns(t *testing.T) {
	in := []core.Transaction{
		tx(core.KindExpense, 2024, 3, 15, "Cibo", 4550),
		tx(core.KindExpense, 2024, 3, 16, "Cibo", -1000),
		tx(core.KindIncome, 2024, 3, 15, "Stipendio", -200000),
		saving(2024, 3, 15, "Fondo vacanze", core.Saving, -3000),
	}
	in[0].Description = "  Spesa "

	out := Standardize(in)

	require.Len(t, out, 4)
	assert.Equal(t, int64(-4550), out[0].Amount.Cents)
	assert.Equal(t, "Spesa", out[0].Description)
	assert.Equal(t, int64(-1000), out[1].Amount.Cents)
	assert.Equal(t, int64(200000), out[2].Amount.Cents)
	assert.Equal(t, int64(-3000), out[3].Amount.Cents)
	// Input is left alone.
	assert.Equal(t, int64(4550), in[0].Amount.Cents)
	assert.Equal(t, "  Spesa ", in[0].Description)
}

func TestMonthlySummaryExample(t *testing.T) {
	expenses := Standardize([]core.Transaction{tx(core.KindExpense, 2024, 3, 15, "Cibo", -4550)})
	income := Standardize([]core.Transaction{tx(core.KindIncome, 2024, 3, 15, "Stipendio", 200000)})

	got := MonthlySummary(expenses, income)

	require.Len(t, got, 1)
	assert.Equal(t, core.MonthlySummary{
		Year:    2024,
		Month:   3,
		Income:  core.Money{Cents: 200000},
		Expense: core.Money{Cents: 4550},
		Balance: core.Money{Cents: 195450},
	}, got[0])
	assert.Equal(t, "1954.50", got[0].Balance.String())
}

func TestMonthlySummaryZeroFillsAndOrders(t *testing.T) {
	expenses := []core.Transaction{
		tx(core.KindExpense, 2024, 2, 1, "Casa", -50000),
		tx(core.KindExpense, 2023, 12, 31, "Cibo", -1000),
		tx(core.KindExpense, 2024, 2, 20, "Cibo", -2500),
	}
	income := []core.Transaction{
		tx(core.KindIncome, 2024, 1, 27, "Stipendio", 200000),
	}

	got := MonthlySummary(expenses, income)

	require.Len(t, got, 3)
	assert.Equal(t, 2023, got[0].Year)
	assert.Equal(t, 12, got[0].Month)
	assert.Equal(t, int64(0), got[0].Income.Cents)
	assert.Equal(t, int64(-1000), got[0].Balance.Cents)

	assert.Equal(t, 1, got[1].Month)
	assert.Equal(t, int64(0), got[1].Expense.Cents)
	assert.Equal(t, int64(200000), got[1].Balance.Cents)

	assert.Equal(t, 2, got[2].Month)
	assert.Equal(t, int64(52500), got[2].Expense.Cents)
}

func TestCategoryBreakdownPeriod(t *testing.T) {
	expenses := []core.Transaction{
		tx(core.KindExpense, 2024, 1, 1, "Cibo", -1000),
		tx(core.KindExpense, 2024, 1, 31, "Cibo", -500),
		tx(core.KindExpense, 2024, 2, 1, "Casa", -70000),
		tx(core.KindExpense, 2023, 12, 31, "Trasporti", -300),
	}
	jan := core.Period{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}

	got := CategoryBreakdown(expenses, jan)
	assert.Equal(t, map[string]core.Money{"Cibo": {Cents: -1500}}, got)

	all := CategoryBreakdown(expenses, core.Period{})
	assert.Len(t, all, 3)

	rows := SortedBreakdown(all)
	require.Len(t, rows, 3)
	assert.Equal(t, "Casa", rows[0].Name)
	assert.Equal(t, "Cibo", rows[1].Name)
	assert.Equal(t, "Trasporti", rows[2].Name)
}

func TestSavingsMetricsRunningBalance(t *testing.T) {
	savings := []core.Transaction{
		saving(2024, 1, 10, "Fondo vacanze", core.Allocation, 10000),
		saving(2024, 2, 12, "Fondo vacanze", core.Saving, -3000),
	}

	got := SavingsMetrics(savings)

	require.Len(t, got, 2)
	assert.Equal(t, core.SavingsMetric{
		Year: 2024, Month: 1, Category: "Fondo vacanze",
		Allocated: core.Money{Cents: 10000}, Balance: core.Money{Cents: 10000},
	}, got[0])
	assert.Equal(t, core.SavingsMetric{
		Year: 2024, Month: 2, Category: "Fondo vacanze",
		Spent: core.Money{Cents: -3000}, Balance: core.Money{Cents: 7000},
	}, got[1])
}

func TestSavingsMetricsSkipsInactiveMonths(t *testing.T) {
	savings := []core.Transaction{
		saving(2024, 1, 1, "Auto", core.Allocation, 5000),
		saving(2024, 1, 2, "Casa", core.Allocation, 20000),
		saving(2024, 1, 20, "Casa", core.Saving, -1000),
		saving(2024, 3, 1, "Auto", core.Allocation, 5000),
	}

	got := SavingsMetrics(savings)

	require.Len(t, got, 3)
	assert.Equal(t, "Auto", got[0].Category)
	assert.Equal(t, "Casa", got[1].Category)
	assert.Equal(t, int64(20000), got[1].Allocated.Cents)
	assert.Equal(t, int64(-1000), got[1].Spent.Cents)
	assert.Equal(t, int64(19000), got[1].Balance.Cents)
	assert.Equal(t, 3, got[2].Month)
	assert.Equal(t, int64(10000), got[2].Balance.Cents)
}

// A positive row in the expense sheet is still an expense: its sign is forced
// negative and it adds to the category total.
func TestBreakdownCountsExpenseRefundsAsExpenses(t *testing.T) {
	expenses := Standardize([]core.Transaction{
		tx(core.KindExpense, 2024, 3, 15, "Cibo", -4550),
		tx(core.KindExpense, 2024, 3, 18, "Cibo", 1000),
	})

	breakdown := CategoryBreakdown(expenses, core.Period{})
	assert.Equal(t, int64(-5550), breakdown["Cibo"].Cents)

	summary := MonthlySummary(expenses, nil)
	require.Len(t, summary, 1)
	assert.Equal(t, int64(5550), summary[0].Expense.Cents)
}

func TestMonthlyCategoryBreakdown(t *testing.T) {
	expenses := Standardize([]core.Transaction{
		tx(core.KindExpense, 2024, 2, 3, "Cibo", 3000),
		tx(core.KindExpense, 2024, 1, 5, "Cibo", 1200),
		tx(core.KindExpense, 2024, 1, 9, "Casa", 80000),
		tx(core.KindExpense, 2024, 1, 20, "Cibo", 800),
		tx(core.KindExpense, 2024, 3, 1, "Cibo", 500),
	})
	period := core.Period{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 2, 29)}

	got := MonthlyCategoryBreakdown(expenses, period)

	assert.Equal(t, []core.MonthlyCategoryAmount{
		{Year: 2024, Month: 1, Category: "Casa", Amount: core.Money{Cents: -80000}},
		{Year: 2024, Month: 1, Category: "Cibo", Amount: core.Money{Cents: -2000}},
		{Year: 2024, Month: 2, Category: "Cibo", Amount: core.Money{Cents: -3000}},
	}, got)
}

func TestSavingsTotals(t *testing.T) {
	savings := []core.Transaction{
		saving(2024, 1, 1, "Auto", core.Allocation, 5000),
		saving(2024, 1, 2, "Casa", core.Allocation, 20000),
		saving(2024, 1, 20, "Casa", core.Saving, -1000),
		saving(2024, 3, 1, "Auto", core.Saving, -2000),
	}

	got := SavingsTotals(savings)

	assert.Equal(t, []core.SavingsTotal{
		{Year: 2024, Month: 1, Allocated: core.Money{Cents: 25000}, Spent: core.Money{Cents: -1000}, Balance: core.Money{Cents: 24000}},
		{Year: 2024, Month: 3, Spent: core.Money{Cents: -2000}, Balance: core.Money{Cents: 22000}},
	}, got)
}

func TestAggregatesIgnoreInputOrder(t *testing.T) {
	expenses := Standardize([]core.Transaction{
		tx(core.KindExpense, 2024, 1, 5, "Cibo", 1200),
		tx(core.KindExpense, 2024, 1, 9, "Casa", 80000),
		tx(core.KindExpense, 2024, 2, 3, "Cibo", 3333),
		tx(core.KindExpense, 2024, 3, 15, "Cibo", 4550),
		tx(core.KindExpense, 2023, 11, 2, "Trasporti", 999),
	})
	income := Standardize([]core.Transaction{
		tx(core.KindIncome, 2024, 1, 27, "Stipendio", 200000),
		tx(core.KindIncome, 2024, 3, 27, "Stipendio", 200000),
	})
	savings := []core.Transaction{
		saving(2024, 1, 10, "Fondo vacanze", core.Allocation, 10000),
		saving(2024, 2, 12, "Fondo vacanze", core.Saving, -3000),
		saving(2024, 2, 13, "Auto", core.Allocation, 2500),
		saving(2024, 2, 20, "Fondo vacanze", core.Allocation, 1000),
	}

	wantSummary := MonthlySummary(expenses, income)
	wantBreakdown := CategoryBreakdown(expenses, core.Period{})
	wantSavings := SavingsMetrics(savings)
	wantMonthly := MonthlyCategoryBreakdown(expenses, core.Period{})
	wantTotals := SavingsTotals(savings)

	for seed := int64(1); seed <= 5; seed++ {
		assert.Equal(t, wantSummary, MonthlySummary(shuffled(expenses, seed), shuffled(income, seed)))
		assert.Equal(t, wantBreakdown, CategoryBreakdown(shuffled(expenses, seed), core.Period{}))
		assert.Equal(t, wantSavings, SavingsMetrics(shuffled(savings, seed)))
		assert.Equal(t, wantMonthly, MonthlyCategoryBreakdown(shuffled(expenses, seed), core.Period{}))
		assert.Equal(t, wantTotals, SavingsTotals(shuffled(savings, seed)))
	}
}

func TestAggregatesEmptyInput(t *testing.T) {
	assert.Empty(t, Standardize(nil))
	assert.NotNil(t, MonthlySummary(nil, nil))
	assert.Empty(t, MonthlySummary(nil, nil))
	assert.Empty(t, CategoryBreakdown(nil, core.Period{}))
	assert.Empty(t, SortedBreakdown(nil))
	assert.NotNil(t, SavingsMetrics(nil))
	assert.Empty(t, SavingsMetrics(nil))
	assert.Empty(t, MonthlyCategoryBreakdown(nil, core.Period{}))
	assert.Empty(t, SavingsTotals(nil))
}
