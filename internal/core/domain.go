package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
	KindSavings Kind = "savings"
)

const (
	// Saving moves money out of a savings fund (usually negative).
	Saving CategoryType = "saving"
	// Allocation puts money aside into a savings fund (usually positive).
	Allocation CategoryType = "allocation"
)

// DateLayout is the only accepted textual date format: DD/MM/YY.
const DateLayout = "02/01/06"

type (
	Kind         string
	CategoryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// RawRow is one spreadsheet row keyed by canonical field name.
	// Values are whatever the reader produced: strings, numbers, bools or time.Time.
	RawRow map[string]any

	Transaction struct {
		Kind         Kind
		Date         Date
		Description  string
		Category     string
		Amount       Money
		CategoryType CategoryType // savings only
		// SourceCategory holds the original cell text when the category was
		// replaced by the fallback. Empty otherwise.
		SourceCategory string
	}

	// Period is an inclusive date range. A zero bound is open.
	Period struct {
		Start Date
		End   Date
	}
)

var (
	ErrMalformedDate    = errors.New("malformed date")
	ErrUnparsableAmount = errors.New("unparsable amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
)

// Kinds returns every kind in canonical order.
func Kinds() []Kind {
	return []Kind{KindExpense, KindIncome, KindSavings}
}

func (k Kind) IsValid() bool {
	switch k {
	case KindExpense, KindIncome, KindSavings:
		return true
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (c CategoryType) IsValid() bool {
	return c == Saving || c == Allocation
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s with DateLayout. Two-digit years map to 1969-2068 as in time.Parse.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// ISO formats the date as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// Contains reports whether d falls inside the period, bounds included.
func (p Period) Contains(d Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start.Time) {
		return false
	}
	if !p.End.IsZero() && d.After(p.End.Time) {
		return false
	}
	return true
}
