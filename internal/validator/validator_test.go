package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanze/internal/core"
)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(Config{
		Whitelists: map[core.Kind]Whitelist{
			core.KindExpense: {Categories: []string{"Cibo", "Casa", "Trasporti"}, Fallback: "Altro"},
			core.KindIncome:  {Categories: []string{"Stipendio", "Regali"}, Fallback: "Varie"},
			core.KindSavings: {Categories: []string{"Fondo vacanze", "Fondo emergenza"}, Fallback: "Altro"},
		},
		SavingsTypes: map[string]core.CategoryType{
			"Risparmio":      core.Saving,
			"Accantonamento": core.Allocation,
		},
	})
	require.NoError(t, err)
	return v
}

func TestValidateAcceptsWellFormedExpense(t *testing.T) {
	v := testValidator(t)

	tx, err := v.Validate(core.KindExpense, core.RawRow{
		FieldDate:        "15/03/24",
		FieldDescription: " Spesa ",
		FieldCategory:    "Cibo",
		FieldAmount:      "-45,50",
	})

	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, tx.Kind)
	assert.True(t, tx.Date.Equal(core.NewDate(2024, 3, 15).Time))
	assert.Equal(t, "Spesa", tx.Description)
	assert.Equal(t, "Cibo", tx.Category)
	assert.Equal(t, int64(-4550), tx.Amount.Cents)
	assert.Empty(t, tx.SourceCategory)
	assert.Empty(t, tx.CategoryType)
}

func TestValidateUnknownCategoryUsesFallback(t *testing.T) {
	v := testValidator(t)

	tx, err := v.Validate(core.KindIncome, core.RawRow{
		FieldDate:     "01/04/24",
		FieldCategory: "Lotteria",
		FieldAmount:   "10",
	})

	require.NoError(t, err)
	assert.Equal(t, "Varie", tx.Category)
	assert.Equal(t, "Lotteria", tx.SourceCategory)
}

func TestValidateCategoryIsCaseSensitive(t *testing.T) {
	v := testValidator(t)

	tx, err := v.Validate(core.KindExpense, core.RawRow{
		FieldDate:     "01/04/24",
		FieldCategory: "cibo",
		FieldAmount:   "10",
	})

	require.NoError(t, err)
	assert.Equal(t, "Altro", tx.Category)
}

func TestValidateRejections(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name   string
		kind   core.Kind
		row    core.RawRow
		field  string
		reason core.RejectionReason
	}{
		{
			name:   "missing date",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldCategory: "Cibo", FieldAmount: "1"},
			field:  FieldDate,
			reason: core.ReasonMissingField,
		},
		{
			name:   "blank date",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "  ", FieldCategory: "Cibo", FieldAmount: "1"},
			field:  FieldDate,
			reason: core.ReasonMissingField,
		},
		{
			name:   "iso date",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "2024-03-15", FieldCategory: "Cibo", FieldAmount: "1"},
			field:  FieldDate,
			reason: core.ReasonMalformedDate,
		},
		{
			name:   "numeric date",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: 45366.0, FieldCategory: "Cibo", FieldAmount: "1"},
			field:  FieldDate,
			reason: core.ReasonMalformedDate,
		},
		{
			name:   "bad amount",
			kind:   core.KindIncome,
			row:    core.RawRow{FieldDate: "15/03/24", FieldCategory: "Stipendio", FieldAmount: "tanti"},
			field:  FieldAmount,
			reason: core.ReasonUnparsableAmount,
		},
		{
			name:   "missing amount",
			kind:   core.KindIncome,
			row:    core.RawRow{FieldDate: "15/03/24", FieldCategory: "Stipendio"},
			field:  FieldAmount,
			reason: core.ReasonMissingField,
		},
		{
			name:   "empty category",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "15/03/24", FieldCategory: "", FieldAmount: "1"},
			field:  FieldCategory,
			reason: core.ReasonMissingField,
		},
		{
			name:   "numeric category",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "15/03/24", FieldCategory: 42.0, FieldAmount: "1"},
			field:  FieldCategory,
			reason: core.ReasonUnknownCategory,
		},
		{
			name: "unknown savings type",
			kind: core.KindSavings,
			row: core.RawRow{
				FieldDate: "15/03/24", FieldCategory: "Fondo vacanze", FieldAmount: "100", FieldCategoryType: "Sconosciuto",
			},
			field:  FieldCategoryType,
			reason: core.ReasonMissingField,
		},
		{
			name: "missing savings type",
			kind: core.KindSavings,
			row: core.RawRow{
				FieldDate: "15/03/24", FieldCategory: "Fondo vacanze", FieldAmount: "100",
			},
			field:  FieldCategoryType,
			reason: core.ReasonMissingField,
		},
		{
			name:   "date checked before amount",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "yesterday", FieldCategory: "Cibo", FieldAmount: "abc"},
			field:  FieldDate,
			reason: core.ReasonMalformedDate,
		},
		{
			name:   "amount checked before category",
			kind:   core.KindExpense,
			row:    core.RawRow{FieldDate: "15/03/24", FieldAmount: "abc"},
			field:  FieldAmount,
			reason: core.ReasonUnparsableAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.kind, tt.row)
			require.Error(t, err)

			var ve *Error
			require.True(t, errors.As(err, &ve), "expected *Error, got %T", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.reason, ve.Reason)

			reason, ok := ReasonOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestValidateSavingsTypes(t *testing.T) {
	v := testValidator(t)

	alloc, err := v.Validate(core.KindSavings, core.RawRow{
		FieldDate: "10/01/24", FieldCategory: "Fondo vacanze", FieldAmount: "100", FieldCategoryType: "Accantonamento",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Allocation, alloc.CategoryType)

	spent, err := v.Validate(core.KindSavings, core.RawRow{
		FieldDate: "10/02/24", FieldCategory: "Fondo vacanze", FieldAmount: "-30", FieldCategoryType: " Risparmio ",
	})
	require.NoError(t, err)
	assert.Equal(t, core.Saving, spent.CategoryType)
	assert.Equal(t, int64(-3000), spent.Amount.Cents)
}

func TestValidateAcceptsTypedCells(t *testing.T) {
	v := testValidator(t)

	tx, err := v.Validate(core.KindIncome, core.RawRow{
		FieldDate:        time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		FieldDescription: 123,
		FieldCategory:    "Stipendio",
		FieldAmount:      2000.0,
	})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", tx.Date.ISO())
	assert.Equal(t, "123", tx.Description)
	assert.Equal(t, int64(200000), tx.Amount.Cents)
}

func TestValidateInvalidKind(t *testing.T) {
	v := testValidator(t)

	_, err := v.Validate(core.Kind("transfer"), core.RawRow{})
	assert.ErrorIs(t, err, core.ErrInvalidKind)
	_, ok := ReasonOf(err)
	assert.False(t, ok)
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		errorString string
	}{
		{
			name:        "empty",
			cfg:         Config{},
			errorString: "missing whitelist for expense",
		},
		{
			name: "no fallback",
			cfg: Config{
				Whitelists: map[core.Kind]Whitelist{
					core.KindExpense: {Categories: []string{"Cibo"}},
					core.KindIncome:  {Fallback: "Varie"},
					core.KindSavings: {Fallback: "Altro"},
				},
				SavingsTypes: map[string]core.CategoryType{"Risparmio": core.Saving, "Accantonamento": core.Allocation},
			},
			errorString: "empty fallback category for expense",
		},
		{
			name: "bad savings type",
			cfg: Config{
				Whitelists: map[core.Kind]Whitelist{
					core.KindExpense: {Fallback: "Altro"},
					core.KindIncome:  {Fallback: "Varie"},
					core.KindSavings: {Fallback: "Altro"},
				},
				SavingsTypes: map[string]core.CategoryType{"Risparmio": "spent"},
			},
			errorString: `savings token "Risparmio" maps to invalid type`,
		},
		{
			name: "missing allocation token",
			cfg: Config{
				Whitelists: map[core.Kind]Whitelist{
					core.KindExpense: {Fallback: "Altro"},
					core.KindIncome:  {Fallback: "Varie"},
					core.KindSavings: {Fallback: "Altro"},
				},
				SavingsTypes: map[string]core.CategoryType{"Risparmio": core.Saving},
			},
			errorString: "no savings token for allocation",
		},
		{
			name: "two tokens for one type",
			cfg: Config{
				Whitelists: map[core.Kind]Whitelist{
					core.KindExpense: {Fallback: "Altro"},
					core.KindIncome:  {Fallback: "Varie"},
					core.KindSavings: {Fallback: "Altro"},
				},
				SavingsTypes: map[string]core.CategoryType{
					"Risparmio":      core.Saving,
					"Prelievo":       core.Saving,
					"Accantonamento": core.Allocation,
				},
			},
			errorString: "savings type saving has more than one token: Prelievo, Risparmio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(tt.cfg)
			assert.Nil(t, v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestFallbackIsAlwaysKnown(t *testing.T) {
	v := testValidator(t)

	tx, err := v.Validate(core.KindExpense, core.RawRow{
		FieldDate: "15/03/24", FieldCategory: "Altro", FieldAmount: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "Altro", tx.Category)
	assert.Empty(t, tx.SourceCategory)
	assert.Equal(t, "Altro", v.Fallback(core.KindExpense))
}
