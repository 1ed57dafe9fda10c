package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanze/internal/core"
	"finanze/internal/report"
)

type recordingSink struct {
	files map[string][]byte
	order []string
	fail  string
}

func (s *recordingSink) Put(_ context.Context, name string, data []byte) error {
	if name == s.fail {
		return errors.New("disk full")
	}
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = append([]byte(nil), data...)
	s.order = append(s.order, name)
	return nil
}

func sampleDataset() Dataset {
	expense := core.Transaction{
		Kind: core.KindExpense, Date: core.NewDate(2024, 3, 15), Description: "Spesa, Conad",
		Category: "Cibo", Amount: core.Money{Cents: -4550},
	}
	income := core.Transaction{
		Kind: core.KindIncome, Date: core.NewDate(2024, 3, 15), Description: "Marzo",
		Category: "Stipendio", Amount: core.Money{Cents: 200000},
	}
	saving := core.Transaction{
		Kind: core.KindSavings, Date: core.NewDate(2024, 1, 10), Description: "",
		Category: "Fondo vacanze", Amount: core.Money{Cents: 10000}, CategoryType: core.Allocation,
	}
	return Dataset{
		Monthly: []core.MonthlySummary{{
			Year: 2024, Month: 3,
			Income: core.Money{Cents: 200000}, Expense: core.Money{Cents: 4550}, Balance: core.Money{Cents: 195450},
		}},
		ExpenseBreakdown: []core.CategoryAmount{{Name: "Cibo", Amount: core.Money{Cents: -4550}}},
		IncomeBreakdown:  []core.CategoryAmount{{Name: "Stipendio", Amount: core.Money{Cents: 200000}}},
		ExpenseMonthly:   []core.MonthlyCategoryAmount{{Year: 2024, Month: 3, Category: "Cibo", Amount: core.Money{Cents: -4550}}},
		IncomeMonthly:    []core.MonthlyCategoryAmount{{Year: 2024, Month: 3, Category: "Stipendio", Amount: core.Money{Cents: 200000}}},
		Savings: []core.SavingsMetric{{
			Year: 2024, Month: 1, Category: "Fondo vacanze",
			Allocated: core.Money{Cents: 10000}, Balance: core.Money{Cents: 10000},
		}},
		SavingsTotals: []core.SavingsTotal{{
			Year: 2024, Month: 1, Allocated: core.Money{Cents: 10000}, Balance: core.Money{Cents: 10000},
		}},
		Expenses:       []core.Transaction{expense},
		Income:         []core.Transaction{income},
		SavingsRecords: []core.Transaction{saving},
	}
}

func TestTablesCSV(t *testing.T) {
	ds := sampleDataset()

	monthly, err := MonthlySummaryCSV(ds.Monthly)
	require.NoError(t, err)
	assert.Equal(t, "year,month,income,expense,balance\n2024,3,2000.00,45.50,1954.50\n", string(monthly))

	breakdown, err := BreakdownCSV(ds.ExpenseBreakdown)
	require.NoError(t, err)
	assert.Equal(t, "category,total\nCibo,-45.50\n", string(breakdown))

	savings, err := SavingsMetricsCSV(ds.Savings)
	require.NoError(t, err)
	assert.Equal(t, "month,category,allocated,spent,balance\n2024-01,Fondo vacanze,100.00,0.00,100.00\n", string(savings))

	monthlyExpense, err := MonthlyBreakdownCSV(ds.ExpenseMonthly)
	require.NoError(t, err)
	assert.Equal(t, "month,category,total\n2024-03,Cibo,-45.50\n", string(monthlyExpense))

	totals, err := SavingsTotalsCSV(ds.SavingsTotals)
	require.NoError(t, err)
	assert.Equal(t, "month,allocated,spent,balance\n2024-01,100.00,0.00,100.00\n", string(totals))

	expenses, err := TransactionsCSV(core.KindExpense, ds.Expenses)
	require.NoError(t, err)
	assert.Equal(t, "date,description,category,amount\n2024-03-15,\"Spesa, Conad\",Cibo,-45.50\n", string(expenses))

	records, err := TransactionsCSV(core.KindSavings, ds.SavingsRecords)
	require.NoError(t, err)
	assert.Equal(t, "date,description,category,category_type,amount\n2024-01-10,,Fondo vacanze,allocation,100.00\n", string(records))
}

func TestEmptyTablesHaveHeaders(t *testing.T) {
	monthly, err := MonthlySummaryCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "year,month,income,expense,balance\n", string(monthly))
}

func TestPublishOrderAndDeterminism(t *testing.T) {
	ctx := context.Background()
	rep := report.Build(nil, nil)

	var a, b recordingSink
	names, err := Publish(ctx, &a, sampleDataset(), rep)
	require.NoError(t, err)
	_, err = Publish(ctx, &b, sampleDataset(), rep)
	require.NoError(t, err)

	assert.Equal(t, []string{
		MonthlySummaryFile, ExpenseBreakdownFile, IncomeBreakdownFile,
		ExpenseMonthlyFile, IncomeMonthlyFile, SavingsMetricsFile, SavingsTotalsFile,
		ExpensesFile, IncomeFile, SavingsFile, RejectionsFile,
	}, names)
	assert.Equal(t, names, a.order)
	assert.Equal(t, a.files, b.files)
}

func TestPublishStopsOnSinkError(t *testing.T) {
	sink := &recordingSink{fail: SavingsMetricsFile}

	names, err := Publish(context.Background(), sink, sampleDataset(), report.Build(nil, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), SavingsMetricsFile)
	assert.Len(t, names, 5)
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(dir)
	require.NoError(t, err)

	require.NoError(t, sink.Put(context.Background(), "a.csv", []byte("x\n")))
	require.NoError(t, sink.Put(context.Background(), "a.csv", []byte("y\n")))

	got, err := os.ReadFile(filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, "y\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	_, err = NewDirSink(" ")
	assert.Error(t, err)
}

func TestObjectNameAndContentType(t *testing.T) {
	assert.Equal(t, "monthly_summary.csv", objectName("", "monthly_summary.csv"))
	assert.Equal(t, "finanze/2024/monthly_summary.csv", objectName("/finanze/2024/", "monthly_summary.csv"))
	assert.Equal(t, "text/csv; charset=utf-8", contentType("x.csv"))
	assert.Equal(t, "application/json", contentType(RejectionsFile))
	assert.Equal(t, "application/octet-stream", contentType("x.bin"))
}
