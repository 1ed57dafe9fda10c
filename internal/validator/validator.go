// Package validator turns raw spreadsheet rows into typed transactions.
//
// A Validator is immutable after New and safe for concurrent use. It performs
// no I/O and does not log: every failure is reported through *Error so the
// caller can record it as a rejection.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"finanze/internal/core"
)

// Canonical field names used as RawRow keys.
const (
	FieldDate         = "date"
	FieldDescription  = "description"
	FieldCategory     = "category"
	FieldAmount       = "amount"
	FieldCategoryType = "category_type"
)

// Whitelist is the closed category set of one transaction kind.
type Whitelist struct {
	Categories []string
	Fallback   string
}

type Config struct {
	Whitelists map[core.Kind]Whitelist
	// SavingsTypes maps the sheet token (e.g. "Risparmio") to its category type.
	SavingsTypes map[string]core.CategoryType
}

type Validator struct {
	categories   map[core.Kind]map[string]struct{}
	fallback     map[core.Kind]string
	savingsTypes map[string]core.CategoryType
}

// Error describes why a row was rejected.
type Error struct {
	Field  string
	Reason core.RejectionReason
	Value  any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the rejection reason from a validation error.
func ReasonOf(err error) (core.RejectionReason, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}

// New builds a Validator. Every kind needs a whitelist with a fallback and
// each savings category type needs exactly one token.
func New(cfg Config) (*Validator, error) {
	var problems []string
	v := &Validator{
		categories:   make(map[core.Kind]map[string]struct{}, len(cfg.Whitelists)),
		fallback:     make(map[core.Kind]string, len(cfg.Whitelists)),
		savingsTypes: make(map[string]core.CategoryType, len(cfg.SavingsTypes)),
	}

	for _, kind := range core.Kinds() {
		wl, ok := cfg.Whitelists[kind]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing whitelist for %s", kind))
			continue
		}
		fallback := strings.TrimSpace(wl.Fallback)
		if fallback == "" {
			problems = append(problems, fmt.Sprintf("empty fallback category for %s", kind))
		}
		set := make(map[string]struct{}, len(wl.Categories)+1)
		for _, c := range wl.Categories {
			c = strings.TrimSpace(c)
			if c == "" {
				problems = append(problems, fmt.Sprintf("empty category name in %s whitelist", kind))
				continue
			}
			set[c] = struct{}{}
		}
		if fallback != "" {
			set[fallback] = struct{}{}
		}
		v.categories[kind] = set
		v.fallback[kind] = fallback
	}

	if len(cfg.SavingsTypes) == 0 {
		problems = append(problems, "no savings category types configured")
	}
	for token, ct := range cfg.SavingsTypes {
		token = strings.TrimSpace(token)
		if token == "" {
			problems = append(problems, "empty savings category type token")
			continue
		}
		if !ct.IsValid() {
			problems = append(problems, fmt.Sprintf("savings token %q maps to invalid type %q", token, ct))
			continue
		}
		v.savingsTypes[token] = ct
	}
	perType := map[core.CategoryType][]string{}
	for token, ct := range v.savingsTypes {
		perType[ct] = append(perType[ct], token)
	}
	for _, ct := range []core.CategoryType{core.Allocation, core.Saving} {
		switch tokens := perType[ct]; len(tokens) {
		case 1:
		case 0:
			problems = append(problems, fmt.Sprintf("no savings token for %s", ct))
		default:
			sort.Strings(tokens)
			problems = append(problems, fmt.Sprintf("savings type %s has more than one token: %s", ct, strings.Join(tokens, ", ")))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("invalid validator configuration:\n- %s", strings.Join(problems, "\n- "))
	}
	return v, nil
}

// Fallback returns the fallback category of kind.
func (v *Validator) Fallback(kind core.Kind) string {
	return v.fallback[kind]
}

// Validate checks row against the schema of kind. Fields are checked in a
// fixed order (date, amount, category, category type) and the first failure wins.
// An unknown category string is not a failure: it is replaced by the fallback
// and the original text is kept in SourceCategory.
func (v *Validator) Validate(kind core.Kind, row core.RawRow) (core.Transaction, error) {
	set, ok := v.categories[kind]
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, kind)
	}

	date, err := parseDateCell(row[FieldDate])
	if err != nil {
		return core.Transaction{}, err
	}

	raw := row[FieldAmount]
	if isBlank(raw) {
		return core.Transaction{}, &Error{Field: FieldAmount, Reason: core.ReasonMissingField, Value: raw}
	}
	amount, err := core.ParseAmount(trimmed(raw))
	if err != nil {
		return core.Transaction{}, &Error{Field: FieldAmount, Reason: core.ReasonUnparsableAmount, Value: raw, Err: err}
	}

	category, source, err := v.category(kind, set, row[FieldCategory])
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		Kind:           kind,
		Date:           date,
		Description:    cellText(row[FieldDescription]),
		Category:       category,
		Amount:         amount,
		SourceCategory: source,
	}

	if kind == core.KindSavings {
		ct, err := v.categoryType(row[FieldCategoryType])
		if err != nil {
			return core.Transaction{}, err
		}
		tx.CategoryType = ct
	}
	return tx, nil
}

func parseDateCell(raw any) (core.Date, error) {
	if isBlank(raw) {
		return core.Date{}, &Error{Field: FieldDate, Reason: core.ReasonMissingField, Value: raw}
	}
	switch x := raw.(type) {
	case time.Time:
		return core.DateOf(x), nil
	case core.Date:
		return x, nil
	case string:
		d, err := core.ParseDate(strings.TrimSpace(x))
		if err != nil {
			return core.Date{}, &Error{Field: FieldDate, Reason: core.ReasonMalformedDate, Value: raw, Err: err}
		}
		return d, nil
	}
	return core.Date{}, &Error{
		Field:  FieldDate,
		Reason: core.ReasonMalformedDate,
		Value:  raw,
		Err:    fmt.Errorf("%w: unsupported cell type %T", core.ErrMalformedDate, raw),
	}
}

func (v *Validator) category(kind core.Kind, set map[string]struct{}, raw any) (string, string, error) {
	if isBlank(raw) {
		return "", "", &Error{Field: FieldCategory, Reason: core.ReasonMissingField, Value: raw}
	}
	s, ok := raw.(string)
	if !ok {
		return "", "", &Error{
			Field:  FieldCategory,
			Reason: core.ReasonUnknownCategory,
			Value:  raw,
			Err:    fmt.Errorf("category must be text, got %T", raw),
		}
	}
	s = strings.TrimSpace(s)
	if _, known := set[s]; known {
		return s, "", nil
	}
	return v.fallback[kind], s, nil
}

func (v *Validator) categoryType(raw any) (core.CategoryType, error) {
	if s, ok := raw.(string); ok {
		if ct, known := v.savingsTypes[strings.TrimSpace(s)]; known {
			return ct, nil
		}
	}
	return "", &Error{Field: FieldCategoryType, Reason: core.ReasonMissingField, Value: raw}
}

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func trimmed(raw any) any {
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return raw
}

func cellText(raw any) string {
	switch x := raw.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}
