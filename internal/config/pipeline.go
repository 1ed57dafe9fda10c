package config

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/ghodss/yaml"

	"finanze/internal/core"
	"finanze/internal/extract"
	"finanze/internal/validator"
)

// Sheet binds a workbook sheet to a transaction kind.
type Sheet struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CategorySet is the whitelist of one kind.
type CategorySet struct {
	Values   []string `json:"values"`
	Fallback string   `json:"fallback"`
	// Excluded categories are valid but left out of every dataset.
	Excluded []string `json:"excluded"`
}

type Categories struct {
	Expense CategorySet `json:"expense"`
	Income  CategorySet `json:"income"`
	Savings CategorySet `json:"savings"`
}

// Pipeline describes the workbook layout and the category policy.
type Pipeline struct {
	Sheets       []Sheet           `json:"sheets"`
	Columns      map[string]string `json:"columns"`
	Categories   Categories        `json:"categories"`
	SavingsTypes map[string]string `json:"savings_types"`
}

// DefaultPipeline returns the layout of the household workbook.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Sheets: []Sheet{
			{Name: "Uscite", Kind: string(core.KindExpense)},
			{Name: "Entrate", Kind: string(core.KindIncome)},
			{Name: "Risparmi", Kind: string(core.KindSavings)},
		},
		Columns: extract.DefaultColumns(),
		Categories: Categories{
			Expense: CategorySet{
				Values: []string{
					"Casa", "Bollette", "Cibo", "Ristoranti", "Trasporti", "Salute",
					"Abbigliamento", "Svago", "Viaggi", "Regali", "Istruzione", "Altro",
				},
				Fallback: "Altro",
			},
			Income: CategorySet{
				Values:   []string{"Stipendio", "Bonus", "Rimborsi", "Interessi", "Regali", "Welfare", "Varie"},
				Fallback: "Varie",
				Excluded: []string{"Welfare"},
			},
			Savings: CategorySet{
				Values:   []string{"Fondo emergenza", "Fondo vacanze", "Auto", "Casa", "Investimenti", "Altro"},
				Fallback: "Altro",
			},
		},
		SavingsTypes: map[string]string{
			"Risparmio":      string(core.Saving),
			"Accantonamento": string(core.Allocation),
		},
	}
}

// LoadPipeline reads a YAML pipeline definition and fills everything it leaves
// out from DefaultPipeline. An empty path returns the defaults. Column names
// merge per key; savings_types replaces the default tokens as a whole.
func LoadPipeline(path string) (*Pipeline, error) {
	p := Pipeline{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pipeline config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse pipeline config %s: %w", path, err)
		}
	}
	defaults := DefaultPipeline()
	if len(p.SavingsTypes) > 0 {
		defaults.SavingsTypes = nil
	}
	if err := mergo.Merge(&p, defaults); err != nil {
		return nil, fmt.Errorf("merge pipeline defaults: %w", err)
	}
	return &p, nil
}

// SheetNames returns the configured sheet names in order.
func (p Pipeline) SheetNames() []string {
	out := make([]string, 0, len(p.Sheets))
	for _, s := range p.Sheets {
		out = append(out, s.Name)
	}
	return out
}

// ValidatorConfig converts the category policy for the validator.
func (p Pipeline) ValidatorConfig() validator.Config {
	types := make(map[string]core.CategoryType, len(p.SavingsTypes))
	for token, t := range p.SavingsTypes {
		types[token] = core.CategoryType(t)
	}
	return validator.Config{
		Whitelists: map[core.Kind]validator.Whitelist{
			core.KindExpense: {Categories: p.Categories.Expense.Values, Fallback: p.Categories.Expense.Fallback},
			core.KindIncome:  {Categories: p.Categories.Income.Values, Fallback: p.Categories.Income.Fallback},
			core.KindSavings: {Categories: p.Categories.Savings.Values, Fallback: p.Categories.Savings.Fallback},
		},
		SavingsTypes: types,
	}
}

// ExtractConfig converts the sheet layout for the extractor.
func (p Pipeline) ExtractConfig() extract.Config {
	sheets := make(map[string]core.Kind, len(p.Sheets))
	for _, s := range p.Sheets {
		sheets[s.Name] = core.Kind(s.Kind)
	}
	return extract.Config{
		Sheets:  sheets,
		Columns: extract.ColumnMapping(p.Columns),
		Excluded: map[core.Kind][]string{
			core.KindExpense: p.Categories.Expense.Excluded,
			core.KindIncome:  p.Categories.Income.Excluded,
			core.KindSavings: p.Categories.Savings.Excluded,
		},
	}
}

func (p Pipeline) problems() []string {
	var errors []string
	seen := map[string]bool{}
	for i, s := range p.Sheets {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			errors = append(errors, fmt.Sprintf("sheet %d has no name", i+1))
			continue
		}
		if seen[name] {
			errors = append(errors, fmt.Sprintf("sheet '%s' is configured twice", s.Name))
		}
		seen[name] = true
		if !core.Kind(s.Kind).IsValid() {
			errors = append(errors, fmt.Sprintf("sheet '%s' has invalid kind '%s': must be one of %v", s.Name, s.Kind, core.Kinds()))
		}
	}
	for _, field := range []string{validator.FieldDate, validator.FieldCategory, validator.FieldAmount} {
		if strings.TrimSpace(p.Columns[field]) == "" {
			errors = append(errors, fmt.Sprintf("column for '%s' cannot be empty", field))
		}
	}
	if _, err := validator.New(p.ValidatorConfig()); err != nil {
		errors = append(errors, err.Error())
	}
	return errors
}
