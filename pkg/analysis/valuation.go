package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/orgtree/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

var (
	// ErrUnknownFactor is returned for a factor key outside the FactorSet.
	ErrUnknownFactor = errors.New("unknown valuation factor")
	// ErrUnknownLevel is returned for a level that is not I to V.
	ErrUnknownLevel = errors.New("unknown valuation level")
)

// FactorKeys are the five standard valuation factors.
var FactorKeys = []string{"A", "B", "C", "D", "E"}

var factorDescriptions = map[string]string{
	"A": "Education and training: academic level and specialization the position requires",
	"B": "Experience: years of professional experience needed",
	"C": "Complexity: technical difficulty and variety of the tasks",
	"D": "Responsibility: weight of decisions taken and people supervised",
	"E": "Working conditions: physical and psychological conditions of the job",
}

// levelsPerStep is the score of each level step: Nivel I scores 10, Nivel V scores 50.
const levelsPerStep = 10

// Factor is one valuation factor of a position.
type Factor struct {
	Key   string `json:"key" yaml:"key"`
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	Score int    `json:"score" yaml:"score"`
}

// FactorSet locates the valuation factors of a position. Factor k is read
// from the field Prefix+k and may be written as
//
//	{level: "Nivel III", score: 30}   (also nivel / puntuacion)
//	30                                (score only)
//	"Nivel III"                       (level only, standard score)
type FactorSet struct {
	Prefix       string
	Keys         []string
	Descriptions map[string]string
}

// DefaultFactors reads valuation_A..valuation_E.
func DefaultFactors() FactorSet {
	return FactorSet{Prefix: "valuation_", Keys: FactorKeys, Descriptions: factorDescriptions}
}

// LevelRank parses levels such as "Nivel III", "Level 3", "iv" or "5" into 1..5.
// It returns 0 for anything else.
func LevelRank(level string) int {
	fields := strings.Fields(level)
	if len(fields) == 0 {
		return 0
	}
	last := strings.ToUpper(fields[len(fields)-1])
	switch last {
	case "I":
		return 1
	case "II":
		return 2
	case "III":
		return 3
	case "IV":
		return 4
	case "V":
		return 5
	}
	if n, err := strconv.Atoi(last); err == nil && n >= 1 && n <= 5 {
		return n
	}
	return 0
}

// StandardScore is the score a factor gets for a level when no explicit score is given.
func StandardScore(level string) int {
	return LevelRank(level) * levelsPerStep
}

// Has reports whether key belongs to the set.
func (fs FactorSet) Has(key string) bool {
	for _, k := range fs.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Explain returns the description of a factor. Factors outside the standard
// five have an empty description; the second value is false only for keys
// outside the set.
func (fs FactorSet) Explain(key string) (string, bool) {
	if !fs.Has(key) {
		return "", false
	}
	return fs.Descriptions[key], true
}

// Factor reads factor key of e. The second value is false when e does not carry it.
func (fs FactorSet) Factor(e domain.Entry, key string) (Factor, bool) {
	v, ok := e.Field(fs.Prefix + key)
	if !ok || v == nil {
		return Factor{}, false
	}

	f := Factor{Key: key}
	switch val := v.(type) {
	case map[string]any:
		f.Level = firstString(val, "level", "nivel")
		score, ok := firstNumber(val, "score", "puntuacion", "puntuación")
		if !ok {
			score = StandardScore(f.Level)
		}
		f.Score = score
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			f.Score = n
			break
		}
		f.Level = strings.TrimSpace(val)
		f.Score = StandardScore(f.Level)
	default:
		var n float64
		if err := mapstructure.WeakDecode(val, &n); err != nil {
			return Factor{}, false
		}
		f.Score = int(n)
	}
	return f, true
}

// Factors returns the factors e carries, in key order.
func (fs FactorSet) Factors(e domain.Entry) []Factor {
	var out []Factor
	for _, k := range fs.Keys {
		if f, ok := fs.Factor(e, k); ok {
			out = append(out, f)
		}
	}
	return out
}

// Total sums the scores of every factor e carries.
// The second value is false when e carries none.
func (fs FactorSet) Total(e domain.Entry) (int, bool) {
	factors := fs.Factors(e)
	total := 0
	for _, f := range factors {
		total += f.Score
	}
	return total, len(factors) > 0
}

// AtLeast keeps the entries whose factor key is rated minLevel or higher.
// Entries without the factor, or with an unreadable level, are dropped.
func (fs FactorSet) AtLeast(entries []domain.Entry, key, minLevel string) ([]domain.Entry, error) {
	if !fs.Has(key) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactor, key)
	}
	floor := LevelRank(minLevel)
	if floor == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, minLevel)
	}

	var out []domain.Entry
	for _, e := range entries {
		f, ok := fs.Factor(e, key)
		if !ok {
			continue
		}
		if LevelRank(f.Level) >= floor {
			out = append(out, e)
		}
	}
	return out, nil
}

// Comparison lays several positions side by side, one row per factor.
type Comparison struct {
	Positions []string       `json:"positions" yaml:"positions"`
	Factors   []FactorRow    `json:"factors" yaml:"factors"`
	Totals    map[string]int `json:"totals" yaml:"totals"`
}

// FactorRow holds one factor of every compared position, keyed by position id.
// Positions that do not carry the factor are absent.
type FactorRow struct {
	Key    string            `json:"key" yaml:"key"`
	Scores map[string]Factor `json:"scores" yaml:"scores"`
}

// Compare builds a Comparison of entries over keys, or over every key when keys is empty.
func (fs FactorSet) Compare(entries []domain.Entry, keys []string) (Comparison, error) {
	if len(keys) == 0 {
		keys = fs.Keys
	}
	for _, k := range keys {
		if !fs.Has(k) {
			return Comparison{}, fmt.Errorf("%w: %q", ErrUnknownFactor, k)
		}
	}

	cmp := Comparison{
		Positions: make([]string, 0, len(entries)),
		Factors:   make([]FactorRow, 0, len(keys)),
		Totals:    make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		cmp.Positions = append(cmp.Positions, e.ID)
		cmp.Totals[e.ID], _ = fs.Total(e)
	}
	for _, k := range keys {
		row := FactorRow{Key: k, Scores: make(map[string]Factor)}
		for _, e := range entries {
			if f, ok := fs.Factor(e, k); ok {
				row.Scores[e.ID] = f
			}
		}
		cmp.Factors = append(cmp.Factors, row)
	}
	return cmp, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var n float64
		if err := mapstructure.WeakDecode(v, &n); err == nil {
			return int(n), true
		}
	}
	return 0, false
}
