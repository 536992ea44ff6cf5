// Package analysis profiles tables, derives heuristic insights, computes
// descriptive statistics and applies cleaning operations.
package analysis

import (
	"math"

	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

// ColumnInfo describes one column of a profile.
type ColumnInfo struct {
	Name       string       `json:"name"`
	Kind       dataset.Kind `json:"kind"`
	Missing    int          `json:"missing"`
	MissingPct float64      `json:"missing_pct"`
	Unique     int          `json:"unique"`
}

// Profile is a read-only snapshot of a table. Every column appears in
// exactly one of Numerical, Categorical and Datetime, in table order.
type Profile struct {
	Rows             int          `json:"rows"`
	Columns          int          `json:"columns"`
	MissingCells     int          `json:"missing_cells"`
	MissingValuesPct float64      `json:"missing_values_pct"`
	Numerical        []string     `json:"numerical_columns"`
	Categorical      []string     `json:"categorical_columns"`
	Datetime         []string     `json:"datetime_columns"`
	Info             []ColumnInfo `json:"column_info"`
}

// NewProfile computes the profile of t. It fails only for a table without
// columns.
func NewProfile(t *dataset.Table) (*Profile, error) {
	if t == nil || t.NumCols() == 0 {
		return nil, dataset.ErrNoColumns
	}
	p := &Profile{
		Rows:        t.NumRows(),
		Columns:     t.NumCols(),
		Numerical:   []string{},
		Categorical: []string{},
		Datetime:    []string{},
		Info:        make([]ColumnInfo, t.NumCols()),
	}
	for i, name := range t.Columns {
		cells := t.Column(i)
		kind := dataset.InferKind(name, cells)
		miss := t.MissingCount(i)
		p.MissingCells += miss
		info := ColumnInfo{Name: name, Kind: kind, Missing: miss, Unique: t.Unique(i)}
		if p.Rows > 0 {
			info.MissingPct = round2(float64(miss) / float64(p.Rows) * 100)
		}
		p.Info[i] = info
		switch kind {
		case dataset.KindNumeric:
			p.Numerical = append(p.Numerical, name)
		case dataset.KindDatetime:
			p.Datetime = append(p.Datetime, name)
		default:
			p.Categorical = append(p.Categorical, name)
		}
	}
	if total := p.Rows * p.Columns; total > 0 {
		p.MissingValuesPct = round2(float64(p.MissingCells) / float64(total) * 100)
	}
	return p, nil
}

// KindOf returns the kind recorded for a column name.
func (p *Profile) KindOf(name string) (dataset.Kind, bool) {
	for _, c := range p.Info {
		if c.Name == name {
			return c.Kind, true
		}
	}
	return "", false
}

// IsNumeric reports whether the named column profiled as numeric.
func (p *Profile) IsNumeric(name string) bool {
	k, ok := p.KindOf(name)
	return ok && k == dataset.KindNumeric
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
