// Package extract maps raw sheet rows onto canonical fields and runs them
// through the validator, collecting typed transactions and rejections.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finanze/internal/core"
	"finanze/internal/sheets"
	"finanze/internal/validator"
)

// ColumnMapping maps a canonical field name to the sheet header that carries it.
type ColumnMapping map[string]string

// DefaultColumns returns the header names used by the workbook.
func DefaultColumns() ColumnMapping {
	return ColumnMapping{
		validator.FieldDate:         "Data",
		validator.FieldDescription:  "Descrizione",
		validator.FieldCategory:     "Categoria",
		validator.FieldAmount:       "Importo",
		validator.FieldCategoryType: "Tipo categoria",
	}
}

type Config struct {
	// Sheets maps sheet name to transaction kind. Names match ignoring case.
	Sheets  map[string]core.Kind
	Columns ColumnMapping
	// Excluded lists categories whose valid rows are dropped, per kind.
	Excluded map[core.Kind][]string
}

type Extractor struct {
	v        *validator.Validator
	sheets   map[string]core.Kind
	columns  ColumnMapping
	excluded map[core.Kind]map[string]struct{}
}

// Result holds everything extracted from one sheet, in source order.
type Result struct {
	Sheet        string
	Kind         core.Kind
	Transactions []core.Transaction
	Rejections   []core.RejectionEntry
	// Remapped counts source categories replaced by the fallback.
	Remapped map[string]int
	Excluded int
	Empty    int
}

var ErrUnmappedSheet = errors.New("sheet is not mapped to a transaction kind")

// MissingSheetError reports a configured sheet absent from the source.
type MissingSheetError struct {
	Sheet string
	Kind  core.Kind
	Err   error
}

func (e *MissingSheetError) Error() string {
	return fmt.Sprintf("required %s sheet %q not found", e.Kind, e.Sheet)
}

func (e *MissingSheetError) Unwrap() error { return e.Err }

func New(v *validator.Validator, cfg Config) (*Extractor, error) {
	if v == nil {
		return nil, errors.New("extractor requires a validator")
	}
	if len(cfg.Sheets) == 0 {
		return nil, errors.New("no sheets configured")
	}
	e := &Extractor{
		v:        v,
		sheets:   make(map[string]core.Kind, len(cfg.Sheets)),
		columns:  DefaultColumns(),
		excluded: map[core.Kind]map[string]struct{}{},
	}
	for name, kind := range cfg.Sheets {
		if !kind.IsValid() {
			return nil, fmt.Errorf("sheet %q: %w: %q", name, core.ErrInvalidKind, kind)
		}
		e.sheets[normalize(name)] = kind
	}
	for field, header := range cfg.Columns {
		if strings.TrimSpace(header) != "" {
			e.columns[field] = header
		}
	}
	for kind, cats := range cfg.Excluded {
		set := map[string]struct{}{}
		for _, c := range cats {
			set[strings.TrimSpace(c)] = struct{}{}
		}
		e.excluded[kind] = set
	}
	return e, nil
}

// KindOf returns the kind mapped to sheet.
func (e *Extractor) KindOf(sheet string) (core.Kind, bool) {
	k, ok := e.sheets[normalize(sheet)]
	return k, ok
}

// ExtractSheet reads sheet from r and extracts it. A sheet the reader does not
// know is reported as *MissingSheetError.
func (e *Extractor) ExtractSheet(ctx context.Context, r sheets.Reader, sheet string) (Result, error) {
	kind, ok := e.KindOf(sheet)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnmappedSheet, sheet)
	}
	values, err := r.ReadSheet(ctx, sheet)
	if err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			return Result{}, &MissingSheetError{Sheet: sheet, Kind: kind, Err: err}
		}
		return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return e.Extract(sheet, values)
}

// Extract converts a raw cell matrix whose first row is the header. Bad rows
// become rejections; only an unmapped sheet is an error.
func (e *Extractor) Extract(sheet string, values [][]any) (Result, error) {
	kind, ok := e.KindOf(sheet)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnmappedSheet, sheet)
	}
	res := Result{
		Sheet:        sheet,
		Kind:         kind,
		Transactions: []core.Transaction{},
		Rejections:   []core.RejectionEntry{},
		Remapped:     map[string]int{},
	}
	if len(values) == 0 {
		return res, nil
	}

	index := e.headerIndex(values[0])
	excluded := e.excluded[kind]

	for i := 1; i < len(values); i++ {
		row := values[i]
		if isEmptyRow(row) {
			res.Empty++
			continue
		}

		tx, err := e.v.Validate(kind, rawRow(index, row))
		if err != nil {
			var ve *validator.Error
			if !errors.As(err, &ve) {
				return Result{}, fmt.Errorf("sheet %q row %d: %w", sheet, i+1, err)
			}
			res.Rejections = append(res.Rejections, core.RejectionEntry{
				Sheet:     sheet,
				Row:       i + 1,
				RawValues: append([]any{}, row...),
				Reason:    ve.Reason,
				Field:     ve.Field,
				Detail:    ve.Error(),
			})
			continue
		}

		source := tx.Category
		if tx.SourceCategory != "" {
			source = tx.SourceCategory
		}
		if _, drop := excluded[source]; drop {
			res.Excluded++
			continue
		}
		if tx.SourceCategory != "" {
			res.Remapped[tx.SourceCategory]++
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res, nil
}

// headerIndex maps canonical field names to column positions. Fields whose
// header is absent are left out so the validator reports them as missing.
func (e *Extractor) headerIndex(header []any) map[string]int {
	index := make(map[string]int, len(e.columns))
	for field, name := range e.columns {
		for i, cell := range header {
			s, ok := cell.(string)
			if ok && strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(name)) {
				index[field] = i
				break
			}
		}
	}
	return index
}

func rawRow(index map[string]int, row []any) core.RawRow {
	out := make(core.RawRow, len(index))
	for field, i := range index {
		if i < len(row) {
			out[field] = row[i]
		} else {
			out[field] = nil
		}
	}
	return out
}

func isEmptyRow(row []any) bool {
	for _, c := range row {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
