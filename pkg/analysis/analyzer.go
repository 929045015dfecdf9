// Package analysis summarizes the opaque fields of a chart: head counts,
// salaries and vacancies per group, and the valuation factors scored for
// each position.
//
// Nothing here is part of the hierarchy itself. Every figure is read from
// Entry.Fields through the field names held by an Analyzer, so the same code
// serves charts exported with English keys and RPT tables with Spanish ones.
package analysis

import (
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Analyzer names the fields that carry the figures it aggregates.
type Analyzer struct {
	GroupField   string
	SalaryField  string
	VacancyField string
	Valuation    FactorSet
}

// Default reads area, salary, vacancies and valuation_A..valuation_E.
func Default() Analyzer {
	return Analyzer{
		GroupField:   "area",
		SalaryField:  "salary",
		VacancyField: "vacancies",
		Valuation:    DefaultFactors(),
	}
}

// RPT reads the keys of municipal position tables: Área, Salario,
// Número_Vacantes and Valoración_A..Valoración_E.
func RPT() Analyzer {
	return Analyzer{
		GroupField:   "Área",
		SalaryField:  "Salario",
		VacancyField: "Número_Vacantes",
		Valuation:    FactorSet{Prefix: "Valoración_", Keys: FactorKeys, Descriptions: factorDescriptions},
	}
}

// Preset returns the analyzer registered under name ("default" or "rpt").
func Preset(name string) (Analyzer, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), true
	case "rpt":
		return RPT(), true
	}
	return Analyzer{}, false
}

// WithDefaults fills empty names from Default.
func (a Analyzer) WithDefaults() Analyzer {
	d := Default()
	if a.GroupField == "" {
		a.GroupField = d.GroupField
	}
	if a.SalaryField == "" {
		a.SalaryField = d.SalaryField
	}
	if a.VacancyField == "" {
		a.VacancyField = d.VacancyField
	}
	if a.Valuation.Prefix == "" && len(a.Valuation.Keys) == 0 {
		a.Valuation = d.Valuation
	}
	if len(a.Valuation.Keys) == 0 {
		a.Valuation.Keys = FactorKeys
	}
	if a.Valuation.Descriptions == nil {
		a.Valuation.Descriptions = factorDescriptions
	}
	return a
}

// number reads a numeric field, accepting ints, floats, json.Number and numeric strings.
func number(e domain.Entry, key string) (float64, bool) {
	v, ok := e.Field(key)
	if !ok || v == nil {
		return 0, false
	}
	var f float64
	if err := mapstructure.WeakDecode(v, &f); err != nil {
		return 0, false
	}
	return f, true
}

// text reads a scalar field as a trimmed string.
func text(e domain.Entry, key string) string {
	v, ok := e.Field(key)
	if !ok || v == nil {
		return ""
	}
	switch v.(type) {
	case map[string]any, []any:
		return ""
	}
	var s string
	if err := mapstructure.WeakDecode(v, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func displayName(e domain.Entry) string {
	if e.Label != "" {
		return e.Label
	}
	return e.ID
}
