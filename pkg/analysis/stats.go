package analysis

import (
	"math"
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
)

// GroupStats aggregates the positions sharing one value of the group field.
type GroupStats struct {
	Group          string   `json:"group" yaml:"group"`
	Count          int      `json:"count" yaml:"count"`
	TotalSalary    float64  `json:"total_salary" yaml:"total_salary"`
	AverageSalary  float64  `json:"avg_salary" yaml:"avg_salary"`
	TotalVacancies int      `json:"total_vacancies" yaml:"total_vacancies"`
	Positions      []string `json:"positions" yaml:"positions"`

	salaried int
}

// Stats groups entries by the group field, in order of first appearance.
// Positions without the field fall in the "" group. The average only counts
// positions that carry a salary.
func (a Analyzer) Stats(entries []domain.Entry) []GroupStats {
	var out []GroupStats
	index := make(map[string]int)

	for _, e := range entries {
		g := text(e, a.GroupField)
		i, ok := index[g]
		if !ok {
			i = len(out)
			index[g] = i
			out = append(out, GroupStats{Group: g})
		}
		a.add(&out[i], e)
	}

	for i := range out {
		out[i].finish()
	}
	return out
}

// Group returns the statistics of one group, matched ignoring case.
// The second value is false when no position belongs to it.
func (a Analyzer) Group(entries []domain.Entry, group string) (GroupStats, bool) {
	want := strings.TrimSpace(group)
	gs := GroupStats{Group: want}
	for _, e := range entries {
		if strings.EqualFold(text(e, a.GroupField), want) {
			a.add(&gs, e)
		}
	}
	if gs.Count == 0 {
		return GroupStats{}, false
	}
	gs.finish()
	return gs, true
}

func (a Analyzer) add(gs *GroupStats, e domain.Entry) {
	gs.Count++
	gs.Positions = append(gs.Positions, displayName(e))
	if s, ok := number(e, a.SalaryField); ok {
		gs.TotalSalary += s
		gs.salaried++
	}
	if v, ok := number(e, a.VacancyField); ok {
		gs.TotalVacancies += int(math.Round(v))
	}
}

func (gs *GroupStats) finish() {
	if gs.salaried > 0 {
		gs.AverageSalary = gs.TotalSalary / float64(gs.salaried)
	}
}
